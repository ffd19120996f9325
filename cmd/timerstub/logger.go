package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/NavarchProject/timerstub/pkg/config"
)

// ConsoleHandler is a human-friendly log handler for the CLI.
type ConsoleHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// NewConsoleHandler creates a new human-friendly log handler.
func NewConsoleHandler(out io.Writer, level slog.Level) *ConsoleHandler {
	return &ConsoleHandler{
		mu:    &sync.Mutex{},
		out:   out,
		level: level,
	}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(r.Time.Format("15:04:05"))
	buf.WriteString(" ")
	buf.WriteString(getEmoji(r.Level, r.Message))
	buf.WriteString(" ")
	buf.WriteString(r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	var attrs []string
	for _, a := range h.attrs {
		if s := formatAttr(a); s != "" {
			attrs = append(attrs, s)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Key = prefix + a.Key
		if s := formatAttr(a); s != "" {
			attrs = append(attrs, s)
		}
		return true
	})

	if len(attrs) > 0 {
		buf.WriteString(" (")
		buf.WriteString(strings.Join(attrs, ", "))
		buf.WriteString(")")
	}
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		if len(h.groups) > 0 {
			a.Key = strings.Join(h.groups, ".") + "." + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}

func getEmoji(level slog.Level, msg string) string {
	if level == slog.LevelError {
		return "❌"
	}
	if level == slog.LevelWarn {
		return "⚠️ "
	}

	msgLower := strings.ToLower(msg)

	switch {
	case strings.Contains(msgLower, "completed"),
		strings.Contains(msgLower, "passed"):
		return "✅"
	case strings.Contains(msgLower, "starting"):
		return "🚀"
	case strings.Contains(msgLower, "firing"):
		return "⏰"
	case strings.Contains(msgLower, "scheduled"):
		return "🗓️ "
	case strings.Contains(msgLower, "cancelled"),
		strings.Contains(msgLower, "cleared"):
		return "🧹"
	case strings.Contains(msgLower, "executing step"):
		return "▶️ "
	case strings.Contains(msgLower, "script"):
		return "📜"
	case strings.Contains(msgLower, "scenario"):
		return "📋"
	default:
		if level == slog.LevelDebug {
			return "🔍"
		}
		return "ℹ️ "
	}
}

func formatAttr(a slog.Attr) string {
	key := a.Key
	val := a.Value.Resolve()

	if val.Kind() == slog.KindString && val.String() == "" {
		return ""
	}

	switch val.Kind() {
	case slog.KindDuration:
		d := val.Duration()
		if d < time.Second {
			return fmt.Sprintf("%s=%s", key, d.Round(time.Microsecond))
		}
		return fmt.Sprintf("%s=%s", key, d.Round(time.Millisecond))
	case slog.KindTime:
		return fmt.Sprintf("%s=%s", key, val.Time().Format("15:04:05"))
	case slog.KindInt64:
		return fmt.Sprintf("%s=%d", key, val.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%s=%d", key, val.Uint64())
	case slog.KindString:
		s := val.String()
		if !strings.ContainsAny(s, " ,") {
			return fmt.Sprintf("%s=%s", key, s)
		}
		return fmt.Sprintf("%s=%q", key, s)
	default:
		return fmt.Sprintf("%s=%v", key, val.Any())
	}
}

// parseLevel maps a config level name to a slog level.
func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// newLogger builds the CLI logger. --debug and --verbose override the
// configured level.
func newLogger(out io.Writer, cfg config.LoggingCfg) *slog.Logger {
	level := parseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	} else if verbose {
		level = slog.LevelInfo
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	default:
		handler = NewConsoleHandler(out, level)
	}
	return slog.New(handler)
}
