// qrxfer transfers files through QR codes: it splits a file into
// self-describing, individually verifiable chunks, renders each chunk as
// a scannable code, and reconstructs the original bytes from an unordered
// set of scanned images or extracted chunk texts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"qrxfer/internal/config"
	"qrxfer/internal/logging"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	configPath string

	// Effective configuration, loaded in PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qrxfer",
	Short: "qrxfer - file transfer over QR codes",
	Long: `qrxfer moves files through a visual channel.

generate splits a file into integrity-checked chunks (optionally
AES-256 encrypted) and renders one QR code per chunk. scan decodes a
directory of photographed codes back into chunk texts. rebuild
reassembles the original file from chunks recovered from images, text
files, or a mix of both, verifying every chunk and the whole file
against the digests embedded in each code.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose && quiet {
			return fmt.Errorf("cannot use --quiet and --verbose together")
		}
		if err := logging.Initialize(verbose, quiet); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode (warnings only)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
