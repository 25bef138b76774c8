// Package log provides the logging infrastructure shared by all docent components.
//
// It exposes:
//   - A type alias for *slog.Logger so components declare a plain dependency
//   - Factory functions that build configured loggers
//   - A Nop logger for tests
//
// Loggers are passed in through constructors, never pulled from globals.
// Components add their own context with logger.With():
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	orch := orchestrator.New(client, cfg, logger.With("component", "orchestrator"))
//
//	// In tests, silence output or capture it:
//	quiet := log.NewNop()
//	var buf bytes.Buffer
//	captured := log.NewWithWriter(&buf, log.Config{})
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger.
// Components accept log.Logger as a dependency; the alias keeps full
// compatibility with the slog ecosystem (With, WithGroup, handlers).
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON output instead of text. Default: false
	JSON bool

	// AddSource adds source file positions to log entries. Default: false
	AddSource bool
}

// New creates a logger writing to os.Stderr with the given configuration.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to w.
// Used by tests to capture output, and by the TUI to divert logs away
// from the terminal the interface is drawing on.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output.
//
// Tests only. Production code always uses New or NewWithWriter so problems
// stay visible.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
