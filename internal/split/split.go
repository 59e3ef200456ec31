// Package split turns one artifact into an ordered sequence of
// self-describing chunk texts sized to the QR medium.
//
// Segmentation is content-aware: text-like input is cut at line
// boundaries so a chunk never ends mid-line, binary input falls back to
// raw slicing. The raw byte budget per segment is derived up front from
// the chunk-text capacity, accounting for header overhead, base64
// expansion and cipher padding, so no chunk needs a measure-and-retry
// pass after encoding.
package split

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"qrxfer/internal/chunk"
	"qrxfer/internal/digest"
	"qrxfer/internal/header"
	"qrxfer/internal/logging"
	"qrxfer/internal/qcrypt"
)

const (
	// MaxQRBytes is the byte capacity of a version 40-L QR code.
	MaxQRBytes = 2953

	// DefaultCapacity keeps chunk texts at 80% of MaxQRBytes.
	DefaultCapacity = 2362

	// DefaultMaxChunks caps the chunk count per artifact. The header
	// budget reserves digits for whatever cap is in effect.
	DefaultMaxChunks = 9999

	// DefaultWorkers bounds the per-chunk encryption/encoding pool.
	DefaultWorkers = 4
)

// ErrCapacityExceeded reports that the artifact would need more chunks
// than the medium supports. The whole split fails; a truncated chunk set
// is useless.
var ErrCapacityExceeded = errors.New("chunk count exceeds medium capacity")

// Options configures one split run.
type Options struct {
	// Capacity is the maximum size in bytes of one chunk text (header
	// line plus encoded payload). Zero means DefaultCapacity.
	Capacity int

	// Passphrase enables encryption when non-empty. The splitter zeroes
	// its internal key material before returning; the caller still owns
	// (and should zero) the passphrase itself.
	Passphrase []byte

	// Workers bounds the worker pool. Zero means DefaultWorkers.
	Workers int

	// MaxChunks caps the chunk count. Zero means DefaultMaxChunks.
	MaxChunks int
}

// Result is the splitter output: the ordered chunk texts plus the
// identity the caller uses for output naming and reporting.
type Result struct {
	Name        string
	ContentHash string
	Total       int
	Encrypted   bool
	Texts       []string
}

// Artifact splits data into chunk texts. A zero-length artifact produces
// exactly one chunk with an empty payload.
func Artifact(ctx context.Context, name string, data []byte, opts Options) (*Result, error) {
	log := logging.Get(logging.CategorySplit)

	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = DefaultMaxChunks
	}
	encrypted := len(opts.Passphrase) > 0

	name = header.SanitizeName(name)
	if name == "" {
		return nil, fmt.Errorf("artifact name is empty after sanitization")
	}

	contentHash := digest.Sum(data)
	budget := rawBudget(name, contentHash, opts.Capacity, opts.MaxChunks, encrypted)

	segments := segment(data, budget)
	total := len(segments)
	if total > opts.MaxChunks {
		return nil, fmt.Errorf("%w: %d chunks needed, %d supported",
			ErrCapacityExceeded, total, opts.MaxChunks)
	}

	log.Debug("segmented artifact",
		zap.String("name", name),
		zap.Int("bytes", len(data)),
		zap.Int("chunks", total),
		zap.Int("raw_budget", budget),
		zap.Bool("encrypted", encrypted))

	texts := make([]string, total)
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			text, err := buildChunk(name, i+1, total, contentHash, seg, opts)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i+1, err)
			}
			if len(text) > opts.Capacity && budget > 1 {
				return fmt.Errorf("chunk %d: text %d bytes exceeds capacity %d",
					i+1, len(text), opts.Capacity)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Name:        name,
		ContentHash: contentHash,
		Total:       total,
		Encrypted:   encrypted,
		Texts:       texts,
	}, nil
}

// buildChunk encrypts (when configured), hashes and frames one segment.
func buildChunk(name string, index, total int, contentHash string, seg []byte, opts Options) (string, error) {
	m := chunk.Meta{
		Name:        name,
		Index:       index,
		Total:       total,
		ContentHash: contentHash,
	}

	payload := seg
	if len(opts.Passphrase) > 0 {
		salt, err := qcrypt.NewSalt()
		if err != nil {
			return "", err
		}
		iv, err := qcrypt.NewIV()
		if err != nil {
			return "", err
		}
		key := qcrypt.DeriveKey(opts.Passphrase, salt, qcrypt.Iterations)
		payload, err = qcrypt.Encrypt(seg, key, iv)
		qcrypt.Zero(key)
		if err != nil {
			return "", err
		}
		m.Encrypted = true
		m.Salt = salt
		m.IV = iv
	}

	m.PayloadHash = digest.Short(payload)
	return header.Serialize(m) + "\n" + base64.StdEncoding.EncodeToString(payload), nil
}

// rawBudget computes how many raw artifact bytes fit in one segment given
// the chunk-text capacity. Header overhead is estimated against the
// worst case: the highest allowed index and total, and salt/iv fields when
// encrypting. Base64 expands 3 bytes to 4 characters; CBC padding adds
// up to one block.
func rawBudget(name, contentHash string, capacity, maxChunks int, encrypted bool) int {
	worst := chunk.Meta{
		Name:        name,
		Index:       maxChunks,
		Total:       maxChunks,
		ContentHash: contentHash,
		PayloadHash: contentHash[:digest.ShortLen],
		Encrypted:   encrypted,
	}
	if encrypted {
		worst.Salt = make([]byte, qcrypt.SaltLen)
		worst.IV = make([]byte, qcrypt.IVLen)
	}
	overhead := len(header.Serialize(worst)) + 1 // trailing newline

	encodedBudget := capacity - overhead
	raw := encodedBudget / 4 * 3
	if encrypted {
		// Padding always rounds up to the next block boundary.
		raw -= qcrypt.IVLen
	}
	if raw < 1 {
		// Degenerate capacities still produce a deterministic, lossless
		// split; each chunk simply overflows the stated capacity by the
		// header overhead.
		raw = 1
	}
	return raw
}

// segment partitions data into slices of at most budget raw bytes.
// Text-like data is cut at line boundaries; a single line longer than the
// budget is hard-sliced. Slices alias data; callers must not mutate it.
func segment(data []byte, budget int) [][]byte {
	if len(data) == 0 {
		return [][]byte{nil}
	}
	if !textLike(data) {
		return sliceEvery(data, budget)
	}

	var segments [][]byte
	start := 0 // start of the segment being accumulated
	pos := 0   // scan position
	for pos < len(data) {
		nl := bytes.IndexByte(data[pos:], '\n')
		var lineEnd int
		if nl < 0 {
			lineEnd = len(data)
		} else {
			lineEnd = pos + nl + 1
		}
		lineLen := lineEnd - pos

		if lineLen > budget {
			// Oversized line: flush what we have, then hard-slice it.
			if pos > start {
				segments = append(segments, data[start:pos])
			}
			segments = append(segments, sliceEvery(data[pos:lineEnd], budget)...)
			start, pos = lineEnd, lineEnd
			continue
		}
		if pos+lineLen-start > budget {
			segments = append(segments, data[start:pos])
			start = pos
		}
		pos = lineEnd
	}
	if pos > start {
		segments = append(segments, data[start:pos])
	}
	return segments
}

func sliceEvery(data []byte, n int) [][]byte {
	var out [][]byte
	for len(data) > n {
		out = append(out, data[:n])
		data = data[n:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

// textLike reports whether data can be cut on line boundaries without
// risking a split inside a multi-byte sequence: valid UTF-8 with no NUL.
func textLike(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	return utf8.Valid(data)
}
