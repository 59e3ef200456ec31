// Package classify decides the processing route for a filesystem input
// before assembly: does it hold QR images, already-extracted chunk text
// files, both, or neither. The classification only selects which readers
// feed chunk texts into the assembler; for a mixed directory both run and
// their outputs merge into one batch.
package classify

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"qrxfer/internal/header"
	"qrxfer/internal/logging"
)

// Kind is the classification outcome.
type Kind int

const (
	Unknown Kind = iota
	SingleImage
	SingleChunkText
	DirImagesOnly
	DirChunksOnly
	DirMixed
)

// String names the outcome for reports and logs.
func (k Kind) String() string {
	switch k {
	case SingleImage:
		return "single_image"
	case SingleChunkText:
		return "single_chunk_text"
	case DirImagesOnly:
		return "directory_images_only"
	case DirChunksOnly:
		return "directory_chunks_only"
	case DirMixed:
		return "directory_mixed"
	default:
		return "unknown"
	}
}

// Report is the classifier output: the outcome plus the recognized
// entries, sorted, for the orchestrating layer to hand to its readers.
type Report struct {
	Kind   Kind
	Images []string
	Chunks []string
	Others int
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// Path classifies a file or directory. Directories are inspected one
// level deep; subdirectories count as unrecognized entries.
func Path(path string) (*Report, error) {
	log := logging.Get(logging.CategoryClassify)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", path, err)
	}

	report := &Report{}
	if !info.IsDir() {
		switch classifyFile(path) {
		case entryImage:
			report.Kind = SingleImage
			report.Images = []string{path}
		case entryChunk:
			report.Kind = SingleChunkText
			report.Chunks = []string{path}
		default:
			report.Kind = Unknown
			report.Others = 1
		}
		return report, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", path, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			report.Others++
			continue
		}
		full := filepath.Join(path, e.Name())
		switch classifyFile(full) {
		case entryImage:
			report.Images = append(report.Images, full)
		case entryChunk:
			report.Chunks = append(report.Chunks, full)
		default:
			report.Others++
		}
	}
	sort.Strings(report.Images)
	sort.Strings(report.Chunks)

	switch {
	case len(report.Images) > 0 && len(report.Chunks) > 0:
		report.Kind = DirMixed
	case len(report.Images) > 0:
		report.Kind = DirImagesOnly
	case len(report.Chunks) > 0:
		report.Kind = DirChunksOnly
	default:
		report.Kind = Unknown
	}

	log.Debug("classified input",
		zap.String("path", path),
		zap.Stringer("kind", report.Kind),
		zap.Int("images", len(report.Images)),
		zap.Int("chunks", len(report.Chunks)),
		zap.Int("others", report.Others))
	return report, nil
}

type entryKind int

const (
	entryOther entryKind = iota
	entryImage
	entryChunk
)

// classifyFile buckets one file by extension, falling back to content
// sniffing (a parseable chunk header on the first line) for text files
// and extensionless entries.
func classifyFile(path string) entryKind {
	ext := strings.ToLower(filepath.Ext(path))
	if imageExts[ext] {
		return entryImage
	}
	if ext == ".txt" || ext == "" {
		if hasChunkHeader(path) {
			return entryChunk
		}
	}
	return entryOther
}

func hasChunkHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		return false
	}
	_, err = header.Parse(sc.Text())
	return err == nil
}
