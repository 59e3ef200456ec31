package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qrxfer/internal/logging"
	"qrxfer/internal/qcrypt"
	"qrxfer/internal/qrcodec"
	"qrxfer/internal/split"
)

var (
	genEncrypt        bool
	genPassphraseFile string
	genOutputDir      string
	genCapacity       int
	genWorkers        int
	genBoxSize        int
	genBorder         bool
	genForce          bool
)

// confirmThreshold is the chunk count above which generate asks before
// flooding the output directory with QR codes.
const confirmThreshold = 100

var generateCmd = &cobra.Command{
	Use:     "generate [file]",
	Aliases: []string{"gen", "g"},
	Short:   "Generate QR codes from a file",
	Long: `Splits a file into integrity-checked chunks and renders one QR
code per chunk into the output directory. Each code carries the file
name, its position, the sibling count, and the digests needed to verify
it independently of the others.

With --encrypt, every chunk payload is AES-256-CBC encrypted under a
key derived from your passphrase (PBKDF2, 100k iterations); the random
per-chunk salt and IV travel inside the code.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&genEncrypt, "encrypt", false, "encrypt chunk payloads with AES-256")
	generateCmd.Flags().StringVar(&genPassphraseFile, "passphrase-file", "", "read the passphrase from a file instead of prompting")
	generateCmd.Flags().StringVarP(&genOutputDir, "output-dir", "o", ".", "output directory for generated QR codes")
	generateCmd.Flags().IntVar(&genCapacity, "capacity", 0, "chunk text byte budget per QR code (default from config)")
	generateCmd.Flags().IntVar(&genWorkers, "workers", 0, "parallel chunk workers (default from config)")
	generateCmd.Flags().IntVar(&genBoxSize, "box-size", 0, "pixel size of one QR module (default from config)")
	generateCmd.Flags().BoolVar(&genBorder, "border", true, "render the quiet zone around each code")
	generateCmd.Flags().BoolVar(&genForce, "force", false, "skip confirmation for large numbers of QR codes")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	opts := split.Options{
		Capacity:  cfg.Split.Capacity,
		Workers:   cfg.Split.Workers,
		MaxChunks: cfg.Split.MaxChunks,
	}
	if genCapacity > 0 {
		opts.Capacity = genCapacity
	}
	if genWorkers > 0 {
		opts.Workers = genWorkers
	}

	if genEncrypt {
		pass, err := readPassphrase(genPassphraseFile, true)
		if err != nil {
			return err
		}
		defer qcrypt.Zero(pass)
		opts.Passphrase = pass
	}

	result, err := split.Artifact(cmd.Context(), filepath.Base(path), data, opts)
	if err != nil {
		return err
	}

	if result.Total > confirmThreshold && !genForce {
		if !confirm(fmt.Sprintf("%d QR codes will be generated. Continue?", result.Total)) {
			return fmt.Errorf("operation cancelled")
		}
	}

	if err := os.MkdirAll(genOutputDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", genOutputDir, err)
	}

	boxSize := cfg.QR.BoxSize
	if genBoxSize > 0 {
		boxSize = genBoxSize
	}
	enc := qrcodec.NewEncoder(boxSize, genBorder)

	stem := strings.TrimSuffix(result.Name, filepath.Ext(result.Name))
	if result.Encrypted {
		stem += "_encrypted"
	}
	log := logging.Get(logging.CategoryRender)
	for i, text := range result.Texts {
		out := filepath.Join(genOutputDir,
			fmt.Sprintf("%s_part_%02d_of_%02d.png", stem, i+1, result.Total))
		if err := enc.WritePNG(text, out); err != nil {
			return err
		}
		log.Debug("rendered code", zap.String("path", out), zap.Int("bytes", len(text)))
	}

	if !quiet {
		note := ""
		if result.Encrypted {
			note = " (encrypted)"
		}
		fmt.Printf("Generated %d QR code(s)%s for %s\n", result.Total, note, result.Name)
		fmt.Printf("Content hash: %s\n", result.ContentHash)
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(sc.Text()), "y")
}
