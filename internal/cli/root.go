// Package cli implements the ftrace command: offline symbol inspection,
// replay of recorded instruction streams, and the print path of the shared
// library.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/logging"
)

// NewRootCommand builds the command tree. Diagnostics go to stderr; command
// output goes to stdout.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "ftrace",
		Short:         "RISC-V function tracer tools",
		Long:          `Inspect ELF images and replay instruction streams recorded by the ftrace shared library.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (default from "+logging.EnvLogLevel+", else warn)")

	root.AddCommand(
		newSymbolsCommand(),
		newReplayCommand(),
		newPrintCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree against the process streams.
func Execute() int {
	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		newLogger(root).Error(context.Background(), "command failed", "err", err)
		return 1
	}
	return 0
}

func newLogger(cmd *cobra.Command) logging.Logger {
	level := logging.LevelFromEnv(slog.LevelWarn)
	if raw, _ := cmd.Flags().GetString("log-level"); raw != "" {
		if lvl, ok := logging.ParseLevel(raw); ok {
			level = lvl
		}
	}
	output := zerolog.ConsoleWriter{
		Out:        cmd.ErrOrStderr(),
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	zl := zerolog.New(output).Level(logging.ZerologLevel(level)).With().Timestamp().Str("app", "ftrace").Logger()
	return logging.NewZerolog(zl)
}
