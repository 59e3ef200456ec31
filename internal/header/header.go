// Package header serializes and parses the metadata line that precedes
// every chunk payload. The header makes each chunk self-describing: any
// single recovered chunk names its artifact, its position, the sibling
// count, and the digests needed to verify it.
//
// Wire format, one line, fields joined by '|':
//
//	name|index|total|content_hash|payload_hash|enc[|salt|iv]
//
// salt and iv are base64 and present only when enc is "1". The header
// line is terminated by a single '\n'; everything after it is the
// base64-encoded payload.
package header

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"qrxfer/internal/chunk"
)

// Delimiter joins header fields. It is stripped from artifact names
// during sanitization, so it can never appear inside a field.
const Delimiter = "|"

const (
	fieldsPlain     = 6
	fieldsEncrypted = 8
)

// ErrMalformed reports a header line that cannot be parsed. Callers skip
// the offending input and continue; a batch may legitimately contain
// noise or foreign QR text.
var ErrMalformed = errors.New("malformed chunk header")

// SanitizeName strips path components and the field delimiter from an
// artifact name so it is always safe to embed in a header.
func SanitizeName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, Delimiter, "_")
	return strings.TrimSpace(name)
}

// Serialize renders chunk metadata as a header line (without the trailing
// newline). The name is sanitized before inclusion.
func Serialize(m chunk.Meta) string {
	enc := "0"
	if m.Encrypted {
		enc = "1"
	}
	fields := []string{
		SanitizeName(m.Name),
		strconv.Itoa(m.Index),
		strconv.Itoa(m.Total),
		m.ContentHash,
		m.PayloadHash,
		enc,
	}
	if m.Encrypted {
		fields = append(fields,
			base64.StdEncoding.EncodeToString(m.Salt),
			base64.StdEncoding.EncodeToString(m.IV),
		)
	}
	return strings.Join(fields, Delimiter)
}

// Parse is the inverse of Serialize. It is pure: on failure it returns a
// zero Meta and an error wrapping ErrMalformed, never a partial result.
func Parse(line string) (chunk.Meta, error) {
	var zero chunk.Meta

	fields := strings.Split(strings.TrimRight(line, "\r\n"), Delimiter)
	if len(fields) != fieldsPlain && len(fields) != fieldsEncrypted {
		return zero, fmt.Errorf("%w: expected %d or %d fields, got %d",
			ErrMalformed, fieldsPlain, fieldsEncrypted, len(fields))
	}

	name := fields[0]
	if name == "" {
		return zero, fmt.Errorf("%w: empty name", ErrMalformed)
	}

	index, err := parsePositive(fields[1])
	if err != nil {
		return zero, fmt.Errorf("%w: index %q", ErrMalformed, fields[1])
	}
	total, err := parsePositive(fields[2])
	if err != nil {
		return zero, fmt.Errorf("%w: total %q", ErrMalformed, fields[2])
	}
	if index > total {
		return zero, fmt.Errorf("%w: index %d exceeds total %d", ErrMalformed, index, total)
	}

	contentHash := fields[3]
	payloadHash := fields[4]
	if !isHex(contentHash) || !isHex(payloadHash) {
		return zero, fmt.Errorf("%w: non-hex digest field", ErrMalformed)
	}

	var encrypted bool
	switch fields[5] {
	case "0":
		encrypted = false
	case "1":
		encrypted = true
	default:
		return zero, fmt.Errorf("%w: encryption flag %q", ErrMalformed, fields[5])
	}
	if encrypted != (len(fields) == fieldsEncrypted) {
		return zero, fmt.Errorf("%w: field count disagrees with encryption flag", ErrMalformed)
	}

	m := chunk.Meta{
		Name:        name,
		Index:       index,
		Total:       total,
		ContentHash: contentHash,
		PayloadHash: payloadHash,
		Encrypted:   encrypted,
	}
	if encrypted {
		m.Salt, err = base64.StdEncoding.DecodeString(fields[6])
		if err != nil || len(m.Salt) == 0 {
			return zero, fmt.Errorf("%w: salt is not valid base64", ErrMalformed)
		}
		m.IV, err = base64.StdEncoding.DecodeString(fields[7])
		if err != nil || len(m.IV) == 0 {
			return zero, fmt.Errorf("%w: iv is not valid base64", ErrMalformed)
		}
	}
	return m, nil
}

// Split separates a chunk text into its header line and the encoded
// payload that follows it. The payload may be empty.
func Split(text string) (headerLine, payload string) {
	i := strings.IndexByte(text, '\n')
	if i < 0 {
		// A header with no payload line at all is still valid for a
		// zero-length segment.
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i+1:])
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("not positive: %d", n)
	}
	return n, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
