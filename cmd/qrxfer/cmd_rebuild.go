package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qrxfer/internal/assemble"
	"qrxfer/internal/classify"
	"qrxfer/internal/logging"
	"qrxfer/internal/qcrypt"
	"qrxfer/internal/qrcodec"
)

var (
	rebuildOutputDir      string
	rebuildPassphraseFile string
	rebuildVerifyOnly     bool
	rebuildSuffix         string
	rebuildTabsToSpaces   bool
	rebuildWorkers        int
)

var rebuildCmd = &cobra.Command{
	Use:     "rebuild [path]",
	Aliases: []string{"r"},
	Short:   "Rebuild files from scanned chunks or QR images",
	Long: `Reconstructs original files from a directory (or single file) of
recovered chunks. The input is classified first: QR images are decoded,
chunk text files are read directly, and a mixed directory merges both
into one batch, so chunks of the same file recovered through either
route reconstruct together.

Every chunk is verified against its own payload digest before use, and
every reconstructed file against the whole-content digest embedded in
its chunks. One damaged file never blocks the others in the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runRebuild,
}

func init() {
	rebuildCmd.Flags().StringVarP(&rebuildOutputDir, "output-dir", "o", "", "output directory for reconstructed files (default from config)")
	rebuildCmd.Flags().StringVar(&rebuildPassphraseFile, "passphrase-file", "", "read the decryption passphrase from a file instead of prompting")
	rebuildCmd.Flags().BoolVar(&rebuildVerifyOnly, "verify-only", false, "verify integrity without writing files")
	rebuildCmd.Flags().StringVar(&rebuildSuffix, "suffix", "", "append a suffix to reconstructed file names")
	rebuildCmd.Flags().BoolVar(&rebuildTabsToSpaces, "tabs-to-spaces", false, "convert tabs to four spaces when writing")
	rebuildCmd.Flags().IntVar(&rebuildWorkers, "workers", 0, "parallel reconstruction workers (default from config)")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	texts, err := collectChunkTexts(args[0])
	if err != nil {
		return err
	}

	outDir := cfg.Rebuild.OutputDir
	if rebuildOutputDir != "" {
		outDir = rebuildOutputDir
	}
	return rebuildTexts(cmd.Context(), texts, outDir)
}

// collectChunkTexts classifies the input path and reads chunk texts
// through the appropriate collaborators, merging both for mixed input.
func collectChunkTexts(path string) ([]string, error) {
	log := logging.Get(logging.CategoryClassify)

	report, err := classify.Path(path)
	if err != nil {
		return nil, err
	}
	if report.Kind == classify.Unknown {
		return nil, fmt.Errorf("%s contains neither QR images nor chunk files", path)
	}
	log.Info("input classified", zap.Stringer("kind", report.Kind),
		zap.Int("images", len(report.Images)), zap.Int("chunks", len(report.Chunks)))

	var texts []string
	for _, p := range report.Chunks {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		texts = append(texts, string(data))
	}

	if len(report.Images) > 0 {
		dec := qrcodec.NewDecoder()
		scanLog := logging.Get(logging.CategoryScan)
		for _, p := range report.Images {
			text, err := dec.DecodeFile(p)
			if err != nil {
				scanLog.Warn("image skipped", zap.String("path", p), zap.Error(err))
				continue
			}
			texts = append(texts, text)
		}
	}
	return texts, nil
}

// rebuildTexts runs the assembler over a batch of chunk texts and writes
// the verified artifacts. Shared by rebuild and scan --auto-rebuild.
func rebuildTexts(ctx context.Context, texts []string, outDir string) error {
	var passphrase []byte
	if batchEncrypted(texts) {
		var err error
		passphrase, err = readPassphrase(rebuildPassphraseFile, false)
		if err != nil {
			return err
		}
		defer qcrypt.Zero(passphrase)
	}

	workers := cfg.Split.Workers
	if rebuildWorkers > 0 {
		workers = rebuildWorkers
	}
	res, err := assemble.Texts(ctx, texts, assemble.Options{
		Passphrase: passphrase,
		Workers:    workers,
	})
	if err != nil {
		return err
	}

	reportResult(res)

	if !rebuildVerifyOnly {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", outDir, err)
		}
		for _, art := range res.Artifacts {
			name := art.Name + rebuildSuffix
			data := art.Bytes
			if rebuildTabsToSpaces {
				data = bytes.ReplaceAll(data, []byte{'\t'}, []byte("    "))
			}
			out := filepath.Join(outDir, name)
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			if !quiet {
				fmt.Printf("Reconstructed %s (%d bytes, verified)\n", out, len(art.Bytes))
			}
		}
	}

	if len(res.Artifacts) == 0 {
		return fmt.Errorf("no files could be reconstructed")
	}
	return nil
}

// batchEncrypted reports whether any chunk text in the batch is flagged
// encrypted, so the passphrase can be requested before assembly starts.
func batchEncrypted(texts []string) bool {
	for _, t := range texts {
		if c, err := assemble.Peek(t); err == nil && c.Encrypted {
			return true
		}
	}
	return false
}

func reportResult(res *assemble.Result) {
	if quiet {
		return
	}
	if res.Duplicates > 0 {
		fmt.Printf("Discarded %d duplicate chunk(s)\n", res.Duplicates)
	}
	for _, inc := range res.Incomplete {
		fmt.Printf("Incomplete: %s is missing part(s) %v of %d\n", inc.Name, inc.Missing, inc.Total)
	}
	for _, f := range res.Failed {
		fmt.Printf("Failed: %s: %v\n", f.Name, f.Err)
	}
	for _, rej := range res.Rejected {
		fmt.Printf("Skipped input: %s\n", rej.Reason)
	}
}
