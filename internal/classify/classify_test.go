package classify

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrxfer/internal/chunk"
	"qrxfer/internal/digest"
	"qrxfer/internal/header"
)

// chunkText builds a minimal but fully valid chunk file body.
func chunkText(t *testing.T) string {
	t.Helper()
	payload := []byte("payload")
	m := chunk.Meta{
		Name:        "doc.txt",
		Index:       1,
		Total:       1,
		ContentHash: digest.Sum(payload),
		PayloadHash: digest.Short(payload),
	}
	return header.Serialize(m) + "\n" + base64.StdEncoding.EncodeToString(payload)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPathSingleImage(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "code.png", "not really a png, extension wins")

	rep, err := Path(img)
	require.NoError(t, err)
	assert.Equal(t, SingleImage, rep.Kind)
	assert.Equal(t, []string{img}, rep.Images)
	assert.Empty(t, rep.Chunks)
}

func TestPathSingleChunkText(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "chunk_001.txt", chunkText(t))

	rep, err := Path(f)
	require.NoError(t, err)
	assert.Equal(t, SingleChunkText, rep.Kind)
	assert.Equal(t, []string{f}, rep.Chunks)
}

func TestPathSingleUnrecognizedFile(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "readme.txt", "just prose, no header")

	rep, err := Path(f)
	require.NoError(t, err)
	assert.Equal(t, Unknown, rep.Kind)
	assert.Equal(t, 1, rep.Others)
}

func TestPathDirImagesOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.png", "x")
	writeFile(t, dir, "a.jpg", "x")
	writeFile(t, dir, "c.JPEG", "x") // extension match is case-insensitive

	rep, err := Path(dir)
	require.NoError(t, err)
	assert.Equal(t, DirImagesOnly, rep.Kind)
	require.Len(t, rep.Images, 3)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), rep.Images[0], "entries come back sorted")
}

func TestPathDirChunksOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chunk_002.txt", chunkText(t))
	writeFile(t, dir, "chunk_001.txt", chunkText(t))
	writeFile(t, dir, "extensionless", chunkText(t))

	rep, err := Path(dir)
	require.NoError(t, err)
	assert.Equal(t, DirChunksOnly, rep.Kind)
	assert.Len(t, rep.Chunks, 3)
}

func TestPathDirMixed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "code.png", "x")
	writeFile(t, dir, "chunk_001.txt", chunkText(t))
	writeFile(t, dir, "notes.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	rep, err := Path(dir)
	require.NoError(t, err)
	assert.Equal(t, DirMixed, rep.Kind)
	assert.Len(t, rep.Images, 1)
	assert.Len(t, rep.Chunks, 1)
	assert.Equal(t, 2, rep.Others, "markdown file and subdirectory are unrecognized")
}

func TestPathEmptyDir(t *testing.T) {
	rep, err := Path(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Unknown, rep.Kind)
}

func TestPathMissing(t *testing.T) {
	_, err := Path(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "directory_mixed", DirMixed.String())
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
