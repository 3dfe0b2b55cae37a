// Package logging provides structured logging configuration shared by the
// phylax binaries and packages.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds logging configuration.
type Config struct {
	Level  string
	Pretty bool
}

// levelVar is shared by every logger built here so a configuration reload can
// adjust verbosity at runtime without recreating handlers.
var levelVar slog.LevelVar

// NewLogger builds a slog.Logger writing to stdout. JSON output is the
// default; Pretty switches to the text handler for local development.
func NewLogger(cfg Config) *slog.Logger {
	levelVar.Set(ParseLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: &levelVar}
	var handler slog.Handler
	if cfg.Pretty {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// SetLevel adjusts the shared level for all loggers built by NewLogger.
func SetLevel(level string) {
	levelVar.Set(ParseLevel(level))
}

// ParseLevel maps a configuration level name onto a slog level. Unknown names
// fall back to info rather than failing startup.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
