package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls how New builds the process logger.
type Options struct {
	Env    string // "dev" selects the text handler, anything else JSON
	Level  string // debug|info|warn|error
	Output io.Writer
}

// New creates the process-wide slog logger. Development uses the text
// handler for readability; every other environment emits JSON.
func New(opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Env) {
	case "dev", "development", "local":
		handler = slog.NewTextHandler(out, hopts)
	default:
		handler = slog.NewJSONHandler(out, hopts)
	}
	return slog.New(handler)
}

// ParseLevel converts a LOG_LEVEL value to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
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

// Component returns a child logger tagged with the component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("component", name))
}

// Discard is a logger that drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}
