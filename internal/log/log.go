// Package log builds the slog loggers used across the service.
//
// Loggers are injected, never global: each component receives one via its
// constructor and may narrow it with logger.With("component", ...).
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger aliases *slog.Logger so constructors can name the dependency
// without introducing a wrapper interface.
type Logger = *slog.Logger

// Config controls handler construction.
type Config struct {
	// Level is the minimum level emitted. Zero value is slog.LevelInfo.
	Level slog.Level

	// JSON switches from text to JSON output.
	JSON bool

	// AddSource annotates records with file and line.
	AddSource bool
}

// New returns a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w. Tests use this with a
// bytes.Buffer to inspect output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything. Test use only.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
