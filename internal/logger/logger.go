// Package logger provides the structured logger shared by sessions, the HTTP
// server and the CLI.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// StreamKey is the attribute that ties a record to one stream.
const StreamKey = "stream_id"

// Logger is the logging interface used across streamrt.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New wraps a slog handler.
func New(handler slog.Handler) Logger {
	return &slogLogger{l: slog.New(handler)}
}

// Default writes console records at info level to stderr.
func Default() Logger {
	return Pretty(os.Stderr, slog.LevelInfo)
}

// JSON is the production format; records carry their source location.
func JSON(w io.Writer, level slog.Level) Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
}

// Text is plain logfmt.
func Text(w io.Writer, level slog.Level) Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Pretty is the console format. Colour is off when NO_COLOR is set.
func Pretty(w io.Writer, level slog.Level) Logger {
	return New(NewConsoleHandler(w, ConsoleOptions{
		Level: level,
		Color: os.Getenv("NO_COLOR") == "",
	}))
}

// Discard drops every record.
func Discard() Logger {
	return New(slog.DiscardHandler)
}

// Open builds the Logger for a format name: json, text or pretty.
func Open(w io.Writer, format string, level slog.Level) (Logger, error) {
	switch strings.ToLower(format) {
	case "json":
		return JSON(w, level), nil
	case "text", "logfmt":
		return Text(w, level), nil
	case "", "pretty", "console":
		return Pretty(w, level), nil
	}
	return nil, fmt.Errorf("logger: unknown format %q", format)
}

// ParseLevel accepts the slog level names in any case, with optional offsets
// such as "debug+2", plus the alias "warning".
func ParseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logger: %w", err)
	}
	return level, nil
}

// ForStream scopes l to one stream.
func ForStream(l Logger, id string) Logger {
	return l.With(StreamKey, id)
}

type ctxKey struct{}

// FromContext returns the Logger stored in ctx, or Default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return Default()
}

func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

func (s *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{l: s.l.WithGroup(name)}
}
