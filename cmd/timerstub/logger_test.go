package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFormatAttr(t *testing.T) {
	tests := []struct {
		attr slog.Attr
		want string
	}{
		{slog.String("label", "tick"), "label=tick"},
		{slog.String("expr", "now == 1"), `expr="now == 1"`},
		{slog.String("empty", ""), ""},
		{slog.Int64("now", 1500), "now=1500"},
		{slog.Uint64("id", 7), "id=7"},
		{slog.Duration("duration", 1500*time.Microsecond), "duration=1.5ms"},
		{slog.Duration("duration", 2500*time.Millisecond), "duration=2.5s"},
		{slog.Bool("passed", true), "passed=true"},
	}

	for _, tt := range tests {
		if got := formatAttr(tt.attr); got != tt.want {
			t.Errorf("formatAttr(%v) = %q, want %q", tt.attr, got, tt.want)
		}
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf, slog.LevelInfo)).With(slog.String("run_id", "r1"))

	logger.Debug("firing command", slog.Int64("at", 10))
	logger.Info("scenario completed", slog.Int64("now", 100))
	logger.WithGroup("step").Info("executing step", slog.String("action", "wait"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (debug filtered):\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "scenario completed (run_id=r1, now=100)") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "step.action=wait") {
		t.Errorf("line 1 = %q, want grouped key", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelWarn,
	}
	for name, want := range tests {
		if got := parseLevel(name); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}
