package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"qrxfer/internal/classify"
	"qrxfer/internal/config"
	"qrxfer/internal/qrcodec"
	"qrxfer/internal/split"
)

// resetGlobals puts the package-level command state into a known
// configuration, since the run functions read flag variables directly.
func resetGlobals() {
	cfg = config.Default()
	quiet = true
	verbose = false

	genEncrypt = false
	genPassphraseFile = ""
	genOutputDir = "."
	genCapacity = 0
	genWorkers = 0
	genBoxSize = 4
	genBorder = true
	genForce = true

	scanOutputDir = ""
	scanAutoRebuild = false
	scanWatch = false

	rebuildOutputDir = ""
	rebuildPassphraseFile = ""
	rebuildVerifyOnly = false
	rebuildSuffix = ""
	rebuildTabsToSpaces = false
	rebuildWorkers = 0
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestGenerateScanRebuildRoundTrip(t *testing.T) {
	resetGlobals()
	base := t.TempDir()
	qrDir := filepath.Join(base, "codes")
	chunkDir := filepath.Join(base, "chunks")
	outDir := filepath.Join(base, "rebuilt")

	content := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 16)
	src := filepath.Join(base, "fable.txt")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	genOutputDir = qrDir
	genCapacity = 300
	if err := runGenerate(testCommand(), []string{src}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	pngs, err := filepath.Glob(filepath.Join(qrDir, "fable_part_*.png"))
	if err != nil || len(pngs) < 2 {
		t.Fatalf("expected multiple QR codes, got %d (%v)", len(pngs), err)
	}

	scanOutputDir = chunkDir
	if err := runScan(testCommand(), []string{qrDir}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := os.Stat(filepath.Join(chunkDir, "chunk_001.txt")); err != nil {
		t.Fatalf("scan wrote no chunk files: %v", err)
	}

	rebuildOutputDir = outDir
	if err := runRebuild(testCommand(), []string{chunkDir}); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(outDir, "fable.txt"))
	if err != nil {
		t.Fatalf("read rebuilt file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("rebuilt bytes differ: got %d bytes, want %d", len(got), len(content))
	}
}

func TestRebuildMixedDirectoryMergesSources(t *testing.T) {
	resetGlobals()
	base := t.TempDir()
	mixed := filepath.Join(base, "recovered")
	outDir := filepath.Join(base, "rebuilt")
	if err := os.MkdirAll(mixed, 0o755); err != nil {
		t.Fatal(err)
	}

	content := bytes.Repeat([]byte("chunks of one file, two recovery routes\n"), 16)
	res, err := split.Artifact(context.Background(), "ledger.txt", content, split.Options{Capacity: 300})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total < 2 {
		t.Fatalf("fixture needs at least two chunks, got %d", res.Total)
	}

	// The first chunk survives as an extracted text file, the rest only
	// as QR photos; rebuild must merge both routes into one chunk set.
	if err := os.WriteFile(filepath.Join(mixed, "chunk_001.txt"), []byte(res.Texts[0]), 0o644); err != nil {
		t.Fatal(err)
	}
	enc := qrcodec.NewEncoder(4, true)
	for i, text := range res.Texts[1:] {
		if err := enc.WritePNG(text, filepath.Join(mixed, fmt.Sprintf("photo_%d.png", i+2))); err != nil {
			t.Fatal(err)
		}
	}

	report, err := classify.Path(mixed)
	if err != nil {
		t.Fatal(err)
	}
	if report.Kind != classify.DirMixed {
		t.Fatalf("expected mixed classification, got %s", report.Kind)
	}

	rebuildOutputDir = outDir
	if err := runRebuild(testCommand(), []string{mixed}); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one reconstructed file, got %d", len(entries))
	}
	got, err := os.ReadFile(filepath.Join(outDir, "ledger.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("reconstructed bytes differ from the original")
	}
}
