// Package assemble reconstructs artifacts from an unordered, possibly
// incomplete bag of recovered chunk texts.
//
// Reconstruction is partial-failure tolerant: unparseable inputs are
// skipped with a recorded reason, incomplete chunk sets are reported with
// their missing indices, and one corrupt artifact never blocks the others
// in the same batch. Encrypted and plaintext chunks may coexist; each
// chunk's own header flag governs its handling.
package assemble

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"qrxfer/internal/chunk"
	"qrxfer/internal/digest"
	"qrxfer/internal/header"
	"qrxfer/internal/logging"
	"qrxfer/internal/qcrypt"
)

var (
	// ErrConflictingChunk reports two non-identical payloads claiming
	// the same index: a tamper signal that fails the artifact.
	ErrConflictingChunk = errors.New("conflicting chunks for the same index")

	// ErrIntegrityMismatch reports that the reassembled bytes disagree
	// with the artifact's content hash. Partially-correct output is
	// never emitted.
	ErrIntegrityMismatch = errors.New("reassembled content does not match artifact hash")

	// ErrMissingPassphrase reports an encrypted chunk set with no
	// passphrase supplied. Raised before any decryption is attempted.
	ErrMissingPassphrase = errors.New("encrypted chunks present but no passphrase supplied")

	// ErrNoChunks reports a batch with no parseable chunk at all, the
	// only input condition that fails the whole operation.
	ErrNoChunks = errors.New("no parseable chunks in batch")
)

// Options configures one assembly run.
type Options struct {
	// Passphrase decrypts encrypted chunks. Required iff any chunk set
	// in the batch is encrypted.
	Passphrase []byte

	// Workers bounds the per-chunk-set reconstruction pool. Zero means
	// one worker per set.
	Workers int
}

// Rejected records an input that could not be used, with the reason.
type Rejected struct {
	Raw    string
	Reason string
	Err    error
}

// Incomplete describes a chunk set that cannot be reconstructed yet.
type Incomplete struct {
	Name        string
	ContentHash string
	Total       int
	Missing     []int
}

// Failed describes an artifact whose reconstruction was attempted and
// failed (conflict, decryption failure, integrity mismatch).
type Failed struct {
	Name        string
	ContentHash string
	Err         error
}

// Result is the assembler output for one batch.
type Result struct {
	Artifacts  []*chunk.Artifact
	Incomplete []Incomplete
	Failed     []Failed
	Rejected   []Rejected
	Duplicates int
}

// Texts assembles a batch of raw chunk texts. The returned error is
// non-nil only for whole-batch conditions; per-artifact failures are
// reported inside the Result.
func Texts(ctx context.Context, texts []string, opts Options) (*Result, error) {
	log := logging.Get(logging.CategoryAssemble)
	res := &Result{}

	sets := make(map[chunk.Key]*chunk.Set)
	for _, text := range texts {
		c, err := parseChunk(text)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{Raw: text, Reason: err.Error(), Err: err})
			log.Warn("skipping input", zap.Error(err))
			continue
		}
		key := chunk.Key{Name: c.Name, ContentHash: c.ContentHash}
		set, ok := sets[key]
		if !ok {
			set = chunk.NewSet(key)
			sets[key] = set
		}
		if err := set.Add(c); err != nil {
			res.Rejected = append(res.Rejected, Rejected{Raw: text, Reason: err.Error(), Err: err})
		}
	}

	if len(sets) == 0 {
		if len(texts) == 0 {
			return res, nil
		}
		return res, fmt.Errorf("%w: %d inputs, all rejected", ErrNoChunks, len(texts))
	}

	// Deterministic set order regardless of map iteration.
	keys := make([]chunk.Key, 0, len(sets))
	for k := range sets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].ContentHash < keys[j].ContentHash
	})

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}

	for _, key := range keys {
		set := sets[key]
		g.Go(func() error {
			art, outcome := reconstruct(set, opts.Passphrase)
			mu.Lock()
			defer mu.Unlock()
			res.Duplicates += set.Duplicates()
			switch o := outcome.(type) {
			case nil:
				res.Artifacts = append(res.Artifacts, art)
			case Incomplete:
				res.Incomplete = append(res.Incomplete, o)
			case Failed:
				res.Failed = append(res.Failed, o)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Worker completion order is nondeterministic; restore sort order.
	sort.Slice(res.Artifacts, func(i, j int) bool {
		if res.Artifacts[i].Name != res.Artifacts[j].Name {
			return res.Artifacts[i].Name < res.Artifacts[j].Name
		}
		return res.Artifacts[i].ContentHash < res.Artifacts[j].ContentHash
	})
	sort.Slice(res.Incomplete, func(i, j int) bool { return res.Incomplete[i].Name < res.Incomplete[j].Name })
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].Name < res.Failed[j].Name })

	log.Info("batch assembled",
		zap.Int("artifacts", len(res.Artifacts)),
		zap.Int("incomplete", len(res.Incomplete)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("rejected", len(res.Rejected)),
		zap.Int("duplicates", res.Duplicates))
	return res, nil
}

// Peek parses only the header of a chunk text, without touching the
// payload. Callers use it to decide up front whether a batch needs a
// passphrase.
func Peek(text string) (chunk.Meta, error) {
	line, _ := header.Split(text)
	return header.Parse(line)
}

// parseChunk parses one chunk text: header line, base64 payload, and the
// pre-decryption payload hash check. A failure here rejects only this
// input, never the batch.
func parseChunk(text string) (*chunk.Chunk, error) {
	line, encoded := header.Split(text)
	m, err := header.Parse(line)
	if err != nil {
		return nil, err
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64: %v", header.ErrMalformed, err)
	}
	if !digest.Verify(payload, m.PayloadHash) {
		return nil, fmt.Errorf("chunk %d/%d of %q: payload hash mismatch (tampered or mis-scanned)",
			m.Index, m.Total, m.Name)
	}
	return &chunk.Chunk{Meta: m, Payload: payload, Raw: text}, nil
}

// reconstruct turns one chunk set into an artifact. The outcome is nil on
// success, or an Incomplete / Failed value describing why not.
func reconstruct(set *chunk.Set, passphrase []byte) (*chunk.Artifact, any) {
	if c := set.Conflict(); c != nil {
		return nil, Failed{
			Name:        set.Name,
			ContentHash: set.ContentHash,
			Err: fmt.Errorf("%w: index %d has two distinct payloads",
				ErrConflictingChunk, c.Index),
		}
	}
	if !set.Complete() {
		return nil, Incomplete{
			Name:        set.Name,
			ContentHash: set.ContentHash,
			Total:       set.Total(),
			Missing:     set.Missing(),
		}
	}
	if set.Encrypted() && len(passphrase) == 0 {
		return nil, Failed{Name: set.Name, ContentHash: set.ContentHash, Err: ErrMissingPassphrase}
	}

	var buf []byte
	for _, c := range set.Members() {
		segment := c.Payload
		if c.Encrypted {
			key := qcrypt.DeriveKey(passphrase, c.Salt, qcrypt.Iterations)
			plain, err := qcrypt.Decrypt(c.Payload, key, c.IV)
			qcrypt.Zero(key)
			if err != nil {
				return nil, Failed{
					Name:        set.Name,
					ContentHash: set.ContentHash,
					Err:         fmt.Errorf("chunk %d: %w", c.Index, err),
				}
			}
			segment = plain
		}
		buf = append(buf, segment...)
	}

	if !digest.Verify(buf, set.ContentHash) {
		return nil, Failed{
			Name:        set.Name,
			ContentHash: set.ContentHash,
			Err:         fmt.Errorf("%w: got %s", ErrIntegrityMismatch, digest.Sum(buf)),
		}
	}
	return &chunk.Artifact{Name: set.Name, Bytes: buf, ContentHash: set.ContentHash}, nil
}
