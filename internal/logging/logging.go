// Package logging provides categorized logging for qrxfer, built on zap.
// Each subsystem asks for its category logger via Get; before Initialize
// is called every category resolves to a no-op logger, so library code
// can log unconditionally.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a subsystem's logger.
type Category string

const (
	CategorySplit    Category = "split"    // chunk splitting
	CategoryAssemble Category = "assemble" // chunk set reconstruction
	CategoryScan     Category = "scan"     // QR image scanning
	CategoryClassify Category = "classify" // input classification
	CategoryRender   Category = "render"   // QR rendering collaborator
	CategoryConfig   Category = "config"   // configuration loading
)

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	loggers = make(map[Category]*zap.Logger)
)

// Initialize builds the process logger. Verbose enables debug level,
// quiet raises the floor to warnings. Call once at startup.
func Initialize(verbose, quiet bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch {
	case verbose:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case quiet:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	base = logger
	loggers = make(map[Category]*zap.Logger)
	return nil
}

// Get returns the named logger for a category.
func Get(cat Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := base.Named(string(cat))
	loggers[cat] = l
	return l
}

// Sync flushes buffered log entries. Errors are ignored; stderr sinks
// routinely fail to sync on some platforms.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}
