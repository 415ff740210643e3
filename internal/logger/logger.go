// Package logger provides structured logging setup for the companion relay.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mephissto/simple-digital/internal/config"
)

// New creates a *slog.Logger from the given Logging config, writing to stdout.
// Every record carries a "service" attribute.
func New(cfg config.Logging) *slog.Logger {
	return NewWriter(cfg, os.Stdout, isTerminal(os.Stdout))
}

// NewWriter is New with an explicit destination. tty selects the text
// handler when the format is "auto".
func NewWriter(cfg config.Logging, w io.Writer, tty bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if useText(cfg.Format, tty) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", cfg.Service)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// useText reports whether records should be rendered as text.
// Unknown formats fall back to JSON.
func useText(format string, tty bool) bool {
	switch strings.ToLower(format) {
	case "text":
		return true
	case "auto":
		return tty
	default:
		return false
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}
