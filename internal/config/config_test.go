package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 2362, cfg.Split.Capacity)
	assert.Equal(t, 4, cfg.Split.Workers)
	assert.Equal(t, 9999, cfg.Split.MaxChunks)
	assert.Equal(t, 10, cfg.QR.BoxSize)
	assert.True(t, cfg.QR.Border)
	assert.Equal(t, "./scanned_chunks", cfg.Scan.OutputDir)
	assert.Equal(t, ".", cfg.Rebuild.OutputDir)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
qr:
  box_size: 6
  border: false
split:
  capacity: 1200
scan:
  output_dir: /tmp/chunks
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.QR.BoxSize)
	assert.False(t, cfg.QR.Border)
	assert.Equal(t, 1200, cfg.Split.Capacity)
	assert.Equal(t, "/tmp/chunks", cfg.Scan.OutputDir)
	// Untouched sections keep their defaults.
	assert.Equal(t, 4, cfg.Split.Workers)
}

func TestLoadExplicitMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("qr: [not a mapping"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("split:\n  capacity: 1200\n"), 0o644))

	t.Setenv("QRXFER_CAPACITY", "800")
	t.Setenv("QRXFER_WORKERS", "2")
	t.Setenv("QRXFER_SCAN_DIR", "/var/scan")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Split.Capacity, "environment wins over the file")
	assert.Equal(t, 2, cfg.Split.Workers)
	assert.Equal(t, "/var/scan", cfg.Scan.OutputDir)
}

func TestEnvIgnoresNonNumeric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	t.Setenv("QRXFER_CAPACITY", "lots")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2362, cfg.Split.Capacity)
}

func TestValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("split:\n  capacity: 10\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err, "capacity below the minimum must be rejected")

	require.NoError(t, os.WriteFile(path, []byte("split:\n  workers: 0\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("qr:\n  box_size: 0\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestDumpRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Split.Capacity = 777

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, out, "capacity: 777")
	assert.Contains(t, out, "box_size: 10")
}
