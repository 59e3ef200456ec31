// Package config holds qrxfer configuration: QR rendering knobs, split
// capacity, worker counts and default output directories. Configuration
// is read-only; it merges, in order, built-in defaults, an optional YAML
// file and QRXFER_* environment overrides. The tool never writes it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"qrxfer/internal/logging"
)

// Config is the root configuration.
type Config struct {
	QR      QRConfig      `yaml:"qr"`
	Split   SplitConfig   `yaml:"split"`
	Scan    ScanConfig    `yaml:"scan"`
	Rebuild RebuildConfig `yaml:"rebuild"`
}

// QRConfig configures the rendering collaborator.
type QRConfig struct {
	// BoxSize is the pixel size of one QR module.
	BoxSize int `yaml:"box_size"`

	// Border toggles the quiet zone around each code.
	Border bool `yaml:"border"`
}

// SplitConfig configures the chunk splitter.
type SplitConfig struct {
	// Capacity is the chunk-text byte budget per QR code.
	Capacity int `yaml:"capacity"`

	// Workers bounds the split/assembly worker pools.
	Workers int `yaml:"workers"`

	// MaxChunks caps the chunk count per artifact.
	MaxChunks int `yaml:"max_chunks"`
}

// ScanConfig configures the scan command.
type ScanConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// RebuildConfig configures the rebuild command.
type RebuildConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		QR: QRConfig{
			BoxSize: 10,
			Border:  true,
		},
		Split: SplitConfig{
			Capacity:  2362,
			Workers:   4,
			MaxChunks: 9999,
		},
		Scan: ScanConfig{
			OutputDir: "./scanned_chunks",
		},
		Rebuild: RebuildConfig{
			OutputDir: ".",
		},
	}
}

// DefaultPath returns where Load looks when no path is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "qrxfer", "config.yaml")
}

// Load merges the file at path (or DefaultPath when path is empty) over
// the defaults, then applies environment overrides. A missing file is
// not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No config file is the common case.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryConfig).Debug("configuration loaded",
		zap.String("path", path),
		zap.Int("capacity", cfg.Split.Capacity),
		zap.Int("workers", cfg.Split.Workers))
	return cfg, nil
}

// applyEnv layers QRXFER_* variables over the loaded values.
func applyEnv(cfg *Config) {
	if v, ok := envInt("QRXFER_CAPACITY"); ok {
		cfg.Split.Capacity = v
	}
	if v, ok := envInt("QRXFER_WORKERS"); ok {
		cfg.Split.Workers = v
	}
	if v, ok := envInt("QRXFER_BOX_SIZE"); ok {
		cfg.QR.BoxSize = v
	}
	if v := os.Getenv("QRXFER_SCAN_DIR"); v != "" {
		cfg.Scan.OutputDir = v
	}
	if v := os.Getenv("QRXFER_REBUILD_DIR"); v != "" {
		cfg.Rebuild.OutputDir = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Config) validate() error {
	if c.Split.Capacity < 64 {
		return fmt.Errorf("split.capacity %d is below the minimum useful chunk size", c.Split.Capacity)
	}
	if c.Split.Workers < 1 {
		return fmt.Errorf("split.workers must be at least 1, got %d", c.Split.Workers)
	}
	if c.QR.BoxSize < 1 {
		return fmt.Errorf("qr.box_size must be at least 1, got %d", c.QR.BoxSize)
	}
	return nil
}

// Dump renders the effective configuration as YAML for `config show`.
func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
