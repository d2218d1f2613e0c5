package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"off", LevelQuiet},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLookupLevel(t *testing.T) {
	for _, name := range []string{"debug", "Info", "warn", "warning", "error", "quiet", "OFF"} {
		if _, ok := LookupLevel(name); !ok {
			t.Errorf("LookupLevel(%q) rejected", name)
		}
	}
	if level, ok := LookupLevel("quiet"); level != LevelQuiet || !ok {
		t.Errorf("LookupLevel(quiet) = %v, %v", level, ok)
	}
	if _, ok := LookupLevel("chatty"); ok {
		t.Error("LookupLevel(chatty) accepted")
	}
}

func TestLevelPrecedence(t *testing.T) {
	if got := Level("", "debug"); got != slog.LevelDebug {
		t.Errorf("config level ignored: %v", got)
	}
	if got := Level("error", "debug"); got != slog.LevelError {
		t.Errorf("flag level ignored: %v", got)
	}
}

func TestNewFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)
	log.Info("hidden")
	log.Warn("shown", "table", "Field")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record leaked: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "table=Field") {
		t.Errorf("warn record missing: %q", out)
	}

	Discard().Error("dropped")
}
