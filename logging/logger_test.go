package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		"info":     slog.LevelInfo,
		"warn":     slog.LevelWarn,
		"warning":  slog.LevelWarn,
		"error":    slog.LevelError,
		"":         slog.LevelInfo,
		"verbose?": slog.LevelInfo,
		"DEBUG":    slog.LevelDebug,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewAndDiscardDoNotPanic(t *testing.T) {
	log := New(Options{Level: "debug", Format: "text", Output: "stderr"}, "test", "0.0.0")
	log.Debug("hello", "k", 1)

	Discard().Info("dropped")
}
