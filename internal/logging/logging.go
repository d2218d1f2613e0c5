// Package logging builds the slog loggers used by cilmeta.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// LevelQuiet is above every standard level and silences a logger.
const LevelQuiet = slog.Level(100)

// New returns a text logger writing to w at level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return New(io.Discard, LevelQuiet)
}

// LookupLevel converts debug, info, warn, error or quiet (any case) to a
// level. ok is false for anything else.
func LookupLevel(s string) (level slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "quiet", "off":
		return LevelQuiet, true
	}
	return slog.LevelInfo, false
}

// ParseLevel is LookupLevel with info for unknown names.
func ParseLevel(s string) slog.Level {
	level, _ := LookupLevel(s)
	return level
}

// Level picks the effective level: the flag value when set, else the
// configured one.
func Level(flag, configured string) slog.Level {
	if flag != "" {
		return ParseLevel(flag)
	}
	return ParseLevel(configured)
}
