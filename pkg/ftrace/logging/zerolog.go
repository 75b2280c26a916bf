package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewZerolog adapts a zerolog.Logger to Logger. Arguments follow the slog
// convention: alternating key/value pairs or slog.Attr values.
func NewZerolog(zl zerolog.Logger) Logger {
	return &zeroLogger{zl: zl}
}

type zeroLogger struct {
	zl zerolog.Logger
}

func (l *zeroLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Debug(), msg, args)
}

func (l *zeroLogger) Info(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Info(), msg, args)
}

func (l *zeroLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Warn(), msg, args)
}

func (l *zeroLogger) Error(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Error(), msg, args)
}

func (l *zeroLogger) With(args ...any) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(fieldMap(args)).Logger()}
}

func (l *zeroLogger) emit(ctx context.Context, e *zerolog.Event, msg string, args []any) {
	// Disabled levels return a nil event.
	if e == nil {
		return
	}
	if ctx != nil {
		e = e.Ctx(ctx)
	}
	e.Fields(fieldMap(args)).Msg(msg)
}

func fieldMap(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case slog.Attr:
			fields[a.Key] = a.Value.Any()
		case string:
			if i+1 < len(args) {
				fields[a] = fieldValue(args[i+1])
				i++
			} else {
				fields["!BADKEY"] = a
			}
		default:
			fields[fmt.Sprintf("!BADKEY%d", i)] = a
		}
	}
	return fields
}

func fieldValue(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}

// ZerologLevel converts a slog level to the matching zerolog level.
func ZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level <= slog.LevelDebug:
		return zerolog.DebugLevel
	case level <= slog.LevelInfo:
		return zerolog.InfoLevel
	case level <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
