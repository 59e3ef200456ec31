// Package scan processes QR images in bulk: it decodes every image in a
// directory through the qrcodec collaborator, keeps the texts that parse
// as chunks, and writes them out as chunk files plus a machine-readable
// scan report. Watch mode keeps a directory under observation and scans
// photos as they land.
package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"qrxfer/internal/classify"
	"qrxfer/internal/header"
	"qrxfer/internal/logging"
	"qrxfer/internal/qrcodec"
)

// ErrNoImages reports a scan target containing nothing scannable.
var ErrNoImages = errors.New("no image files found")

// Result accumulates one scan run.
type Result struct {
	// ID correlates the chunk files and report written for this run.
	ID string `json:"id"`

	ImagesProcessed int `json:"images_processed"`
	CodesFound      int `json:"codes_found"`
	ValidChunks     int `json:"valid_chunks"`
	Errors          int `json:"errors"`

	// Texts are the recovered chunk texts, in scan order.
	Texts []string `json:"-"`
}

// Directory decodes every image in dir and collects the chunk texts.
// Per-image decode failures are counted, logged and skipped; only a
// directory with no images at all is an error.
func Directory(dir string, dec *qrcodec.Decoder) (*Result, error) {
	report, err := classify.Path(dir)
	if err != nil {
		return nil, err
	}
	if len(report.Images) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	res := &Result{ID: uuid.NewString()}
	for _, img := range report.Images {
		res.scanOne(img, dec)
	}
	return res, nil
}

func (r *Result) scanOne(path string, dec *qrcodec.Decoder) {
	log := logging.Get(logging.CategoryScan)
	r.ImagesProcessed++

	text, err := dec.DecodeFile(path)
	if err != nil {
		r.Errors++
		log.Warn("image skipped", zap.String("path", path), zap.Error(err))
		return
	}
	r.CodesFound++

	line, _ := header.Split(text)
	if _, err := header.Parse(line); err != nil {
		log.Debug("QR text is not a chunk", zap.String("path", path))
		return
	}
	r.ValidChunks++
	r.Texts = append(r.Texts, text)
	log.Debug("chunk recovered", zap.String("path", path))
}

// Watch scans dir once, then keeps scanning image files as they appear
// until ctx is cancelled. Each recovered chunk text is handed to onText.
// Files are given a short settle delay before decoding, since cameras
// and sync tools write images in several bursts.
func Watch(ctx context.Context, dir string, dec *qrcodec.Decoder, onText func(string)) error {
	log := logging.Get(logging.CategoryScan)

	res, err := Directory(dir, dec)
	if err != nil && !errors.Is(err, ErrNoImages) {
		return err
	}
	if res != nil {
		for _, t := range res.Texts {
			onText(t)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info("watching for new images", zap.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isImage(event.Name) {
				continue
			}
			time.Sleep(200 * time.Millisecond)
			scanned := &Result{}
			scanned.scanOne(event.Name, dec)
			for _, t := range scanned.Texts {
				onText(t)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(werr))
		}
	}
}

// WriteChunks writes each recovered chunk text to outDir as
// chunk_NNN.txt, matching the layout the rebuild command consumes.
func (r *Result) WriteChunks(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}
	for i, text := range r.Texts {
		path := filepath.Join(outDir, fmt.Sprintf("chunk_%03d.txt", i+1))
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// WriteReport writes the scan summary as JSON next to the chunk files.
func (r *Result) WriteReport(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}
	payload := struct {
		*Result
		Timestamp string `json:"timestamp"`
	}{r, time.Now().UTC().Format(time.RFC3339)}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(outDir, "scan_report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".tif":
		return true
	}
	return false
}
