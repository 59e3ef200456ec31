package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"qrxfer/internal/qrcodec"
	"qrxfer/internal/scan"
)

var (
	scanOutputDir   string
	scanAutoRebuild bool
	scanWatch       bool
)

var scanCmd = &cobra.Command{
	Use:     "scan [directory]",
	Aliases: []string{"s"},
	Short:   "Scan QR code images into chunk text files",
	Long: `Decodes every image in a directory, keeps the QR payloads that
parse as file chunks, and writes them to the output directory as
chunk_NNN.txt plus a scan_report.json summary.

--auto-rebuild feeds the recovered chunks straight into reconstruction.
--watch keeps the command running and scans new photos as they land in
the directory, until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanOutputDir, "output", "o", "", "output directory for chunk files (default from config)")
	scanCmd.Flags().BoolVar(&scanAutoRebuild, "auto-rebuild", false, "reconstruct files immediately after scanning")
	scanCmd.Flags().BoolVar(&scanWatch, "watch", false, "keep scanning as new images appear")
}

func runScan(cmd *cobra.Command, args []string) error {
	dir := args[0]
	outDir := cfg.Scan.OutputDir
	if scanOutputDir != "" {
		outDir = scanOutputDir
	}
	dec := qrcodec.NewDecoder()

	if scanWatch {
		return runScanWatch(cmd.Context(), dir, outDir, dec)
	}

	res, err := scan.Directory(dir, dec)
	if err != nil {
		return err
	}
	if err := res.WriteChunks(outDir); err != nil {
		return err
	}
	if err := res.WriteReport(outDir); err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("Scanned %d image(s): %d QR code(s), %d valid chunk(s), %d error(s)\n",
			res.ImagesProcessed, res.CodesFound, res.ValidChunks, res.Errors)
		fmt.Printf("Chunks saved to %s\n", outDir)
	}
	if res.ValidChunks == 0 {
		return fmt.Errorf("no file chunks recovered from %s", dir)
	}

	if scanAutoRebuild {
		return rebuildTexts(cmd.Context(), res.Texts, outDir)
	}
	return nil
}

// runScanWatch scans the directory continuously, collecting recovered
// chunks until interrupted, then writes them out in one batch.
func runScanWatch(parent context.Context, dir, outDir string, dec *qrcodec.Decoder) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collected := &scan.Result{}
	err := scan.Watch(ctx, dir, dec, func(text string) {
		collected.Texts = append(collected.Texts, text)
		collected.ValidChunks++
		if !quiet {
			fmt.Printf("Recovered chunk (%d so far)\n", collected.ValidChunks)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if collected.ValidChunks == 0 {
		return fmt.Errorf("no file chunks recovered from %s", dir)
	}
	if err := collected.WriteChunks(outDir); err != nil {
		return err
	}
	if scanAutoRebuild {
		return rebuildTexts(parent, collected.Texts, outDir)
	}
	return nil
}
