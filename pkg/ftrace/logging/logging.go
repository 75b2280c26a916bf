package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

const redactedPlaceholder = "[redacted]"

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "FTRACE_LOG_LEVEL"

// Logger defines the subset of slog functionality used by the tracer and
// the boundary layer. The interface is intentionally small so hosts can plug
// in their own implementation.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}

// New returns a Logger backed by the provided slog.Logger. Passing nil binds to
// slog.Default().
func New(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

// NewStderr returns a text Logger on stderr at the given level. Standard
// output belongs to print_string and is never used for diagnostics.
func NewStderr(level slog.Level) Logger {
	return NewText(os.Stderr, level)
}

// NewText returns a text Logger writing to w.
func NewText(w io.Writer, level slog.Level) Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return New(slog.New(h))
}

// Discard returns a Logger that drops every record.
func Discard() Logger {
	return NewText(io.Discard, slog.LevelError+1)
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

func (l *slogLogger) Info(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

func (l *slogLogger) Error(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

// ParseLevel maps a level name to a slog.Level. ok is false for empty or
// unknown names.
func ParseLevel(raw string) (level slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelWarn, false
	}
}

// LevelFromEnv returns the level named by FTRACE_LOG_LEVEL, or fallback.
func LevelFromEnv(fallback slog.Level) slog.Level {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		return lvl
	}
	return fallback
}

// Redacted marks attributes whose value was intentionally left out, such as
// full register files at high call rates.
func Redacted(key string) slog.Attr {
	return slog.String(key, redactedPlaceholder)
}

// Placeholder returns the canonical string that represents a redacted value.
func Placeholder() string {
	return redactedPlaceholder
}
