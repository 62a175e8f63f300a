package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a structured logger whose level follows levelVar, so the
// CLI can adjust verbosity after flag parsing. Logs go to stderr; build
// output streamed to stdout stays clean.
func NewLogger(levelVar *slog.LevelVar, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: levelVar,
	}

	// JSON in production for log aggregators, text in development.
	var handler slog.Handler
	if environment == "production" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
