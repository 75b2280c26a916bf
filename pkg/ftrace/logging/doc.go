// Package logging provides a minimal logging facade for the tracer library.
//
// # Logger Interface
//
// The Logger interface provides context-aware logging methods:
//
//	type Logger interface {
//	    Debug(ctx context.Context, msg string, args ...any)
//	    Info(ctx context.Context, msg string, args ...any)
//	    Warn(ctx context.Context, msg string, args ...any)
//	    Error(ctx context.Context, msg string, args ...any)
//	    With(args ...any) Logger
//	}
//
// # Backends
//
// New wraps a *slog.Logger (nil binds to slog.Default()). NewStderr is what
// the shared library uses when it loads: standard output is the collaborator
// of print_string, so diagnostics always go to stderr.
//
// NewZerolog adapts a zerolog.Logger; the ftrace command uses it with a
// zerolog.ConsoleWriter:
//
//	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
//	logger := logging.NewZerolog(zl)
//	logger.Info(ctx, "images loaded", "main", "kernel", "progs", 2)
//
// # Levels
//
// FTRACE_LOG_LEVEL (debug, info, warn, error) overrides the configured level.
//
// # Redaction
//
// Register files are large and arrive with every instruction; diagnostics
// log logging.Redacted("regs") in their place.
package logging
