// Package chunk defines the data model shared by the splitter and the
// assembler: the source artifact being transferred, the per-chunk metadata
// that travels inside every QR code, and the chunk set accumulated during
// reconstruction.
package chunk

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
)

// Artifact is the logical unit being transferred: one file's name, bytes
// and whole-content digest. The splitter owns one instance during encoding;
// the assembler builds a fresh instance during decoding. The two must be
// byte-equal across a round trip.
type Artifact struct {
	// Name is the original file name with any path component stripped.
	Name string

	// Bytes is the complete, ordered byte sequence of the file.
	Bytes []byte

	// ContentHash is the hex SHA-256 digest of Bytes, computed once at
	// split time and embedded in every chunk for redundant identification.
	ContentHash string
}

// Meta is the per-chunk metadata serialized into the chunk header line.
type Meta struct {
	// Name is the sanitized artifact name (no path separators, no
	// header delimiter).
	Name string

	// Index is the 1-based position of this chunk within the artifact.
	Index int

	// Total is the number of chunks the artifact was split into.
	Total int

	// ContentHash is the whole-artifact digest, copied into every chunk.
	ContentHash string

	// PayloadHash is the truncated digest of this chunk's payload bytes
	// (the bytes that are text-safe encoded: ciphertext when encrypted,
	// the raw segment otherwise).
	PayloadHash string

	// Encrypted marks whether Payload carries ciphertext.
	Encrypted bool

	// Salt and IV are random 16-byte values unique to this chunk.
	// Present only when Encrypted is true.
	Salt []byte
	IV   []byte
}

// Chunk is one recovered, header-parsed unit of an artifact.
type Chunk struct {
	Meta

	// Payload holds the decoded payload bytes: ciphertext when
	// Meta.Encrypted is set, the raw artifact segment otherwise.
	Payload []byte

	// Raw is the full chunk text this chunk was parsed from, kept for
	// error reporting.
	Raw string
}

// Key identifies the chunk set a chunk belongs to. All chunks sharing a
// key are members of one artifact's set.
type Key struct {
	Name        string
	ContentHash string
}

// Set accumulates the chunks of one artifact as they arrive in arbitrary
// order. Safe for concurrent Add calls; the duplicate/conflict check runs
// under the set's lock so two chunks claiming the same index are compared,
// never raced.
type Set struct {
	Name        string
	ContentHash string

	mu       sync.Mutex
	total    int
	members  map[int]*Chunk
	dups     int
	conflict *Conflict
}

// Conflict records two non-identical payloads claiming the same index,
// which is treated as a tamper signal for the whole artifact.
type Conflict struct {
	Index  int
	First  *Chunk
	Second *Chunk
}

// NewSet creates an empty set for the given identity.
func NewSet(key Key) *Set {
	return &Set{
		Name:        key.Name,
		ContentHash: key.ContentHash,
		members:     make(map[int]*Chunk),
	}
}

// Add inserts a chunk into the set. Byte-identical duplicates are counted
// and discarded. A duplicate index with a different payload records a
// conflict on the set; the set keeps accepting chunks so the full damage
// can be reported, but it will never be treated as complete.
func (s *Set) Add(c *Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.total == 0 {
		s.total = c.Total
	} else if s.total != c.Total {
		return fmt.Errorf("chunk %d claims %d total parts, set has %d", c.Index, c.Total, s.total)
	}

	prev, ok := s.members[c.Index]
	if !ok {
		s.members[c.Index] = c
		return nil
	}
	if bytes.Equal(prev.Payload, c.Payload) {
		s.dups++
		return nil
	}
	if s.conflict == nil {
		s.conflict = &Conflict{Index: c.Index, First: prev, Second: c}
	}
	return nil
}

// Total returns the member-declared chunk count, or 0 if no chunk has
// been added yet.
func (s *Set) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Duplicates returns how many byte-identical duplicates were discarded.
func (s *Set) Duplicates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dups
}

// Conflict returns the recorded tamper conflict, or nil.
func (s *Set) Conflict() *Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflict
}

// Complete reports whether the set holds exactly one chunk for every index
// in 1..total and no conflict was recorded.
func (s *Set) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflict != nil || s.total == 0 {
		return false
	}
	return len(s.members) == s.total
}

// Missing returns the sorted indices in 1..total with no chunk present.
func (s *Set) Missing() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []int
	for i := 1; i <= s.total; i++ {
		if _, ok := s.members[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// Members returns the held chunks sorted by index.
func (s *Set) Members() []*Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Chunk, 0, len(s.members))
	for _, c := range s.members {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Encrypted reports whether any member chunk carries ciphertext.
func (s *Set) Encrypted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.members {
		if c.Meta.Encrypted {
			return true
		}
	}
	return false
}
