// Package digest is the integrity verifier shared by the splitter and the
// assembler. The algorithm is fixed to SHA-256 by the chunk format; there
// is no negotiation.
package digest

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// ShortLen is the number of hex characters kept for per-chunk payload
// digests. Truncation keeps the header small enough for the QR budget;
// the full digest still guards the reassembled artifact.
const ShortLen = 16

// Sum returns the hex SHA-256 digest of b.
func Sum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Short returns the first ShortLen hex characters of the SHA-256 of b.
func Short(b []byte) string {
	return Sum(b)[:ShortLen]
}

// Verify reports whether b hashes to expected. Expected may be either a
// full digest or a ShortLen-truncated one.
func Verify(b []byte, expected string) bool {
	if expected == "" {
		return false
	}
	got := Sum(b)
	if len(expected) < len(got) {
		got = got[:len(expected)]
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
