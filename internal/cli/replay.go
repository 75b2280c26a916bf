package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/logging"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/tracefile"
)

func newReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <tracefile>",
		Short: "Feed a recorded instruction stream through the tracer",
		Long: `Replay loads the images named by --config and/or --main/--prog, feeds every
record of the trace file to the tracer, then writes the final call stack and,
optionally, the chronological call log.`,
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}
	f := cmd.Flags()
	f.String("config", "", "TOML or YAML config file")
	f.String("main", "", "main ELF image (overrides the config)")
	f.StringSlice("prog", nil, "additional ELF images (repeatable, adds to the config)")
	f.Bool("show-context", false, "record argument and return registers")
	f.String("stack", "-", "where to write the final stack, - for stdout")
	f.String("trace", "", "where to write the call log, - for stdout")
	f.Bool("strict", false, "stop at the first unbalanced return")
	return cmd
}

func replayConfig(cmd *cobra.Command) (ftrace.Config, error) {
	var cfg ftrace.Config
	f := cmd.Flags()
	if path, _ := f.GetString("config"); path != "" {
		loaded, err := ftrace.LoadConfig(path)
		if err != nil {
			return ftrace.Config{}, err
		}
		cfg = loaded
	}
	if f.Changed("main") {
		cfg.MainPath, _ = f.GetString("main")
	}
	progs, _ := f.GetStringSlice("prog")
	cfg.ProgPaths = append(cfg.ProgPaths, progs...)
	if f.Changed("show-context") {
		cfg.ShowContext, _ = f.GetBool("show-context")
	}
	// Replays never record themselves.
	cfg.RecordPath = ""
	if cfg.MainPath == "" {
		return ftrace.Config{}, fmt.Errorf("%w: a main image is required (--main or main_path)", ftrace.ErrInvalidConfig)
	}
	return cfg, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	ctx := cmd.Context()

	cfg, err := replayConfig(cmd)
	if err != nil {
		return err
	}
	h := ftrace.NewHost(ftrace.WithOutput(cmd.OutOrStdout()), ftrace.WithLogger(logger))
	if err := h.ApplyConfig(cfg); err != nil {
		return err
	}

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()
	r, err := tracefile.NewReader(in)
	if err != nil {
		return fmt.Errorf("open trace %s: %w", args[0], err)
	}
	defer r.Close()

	strict, _ := cmd.Flags().GetBool("strict")
	var records, unbalanced int
	err = r.ForEach(func(rec tracefile.Record) error {
		records++
		err := h.CheckInstruction(rec.PC, rec.Inst, rec.Regs)
		if errors.Is(err, ftrace.ErrUnbalancedReturn) && !strict {
			unbalanced++
			logger.Debug(ctx, "unbalanced return", "record", records, "pc", rec.PC, logging.Redacted("regs"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", records, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "replay finished",
		"records", records, "unbalanced_returns", unbalanced, "compressed", r.Compressed())
	if unbalanced > 0 {
		logger.Warn(ctx, "returns without a matching frame were skipped", "count", unbalanced)
	}

	stack, _ := cmd.Flags().GetString("stack")
	if err := writeTo(cmd, stack, h.WriteStack); err != nil {
		return err
	}
	trace, _ := cmd.Flags().GetString("trace")
	return writeTo(cmd, trace, h.WriteTrace)
}

func writeTo(cmd *cobra.Command, dest string, write func(io.Writer) error) (err error) {
	switch dest {
	case "":
		return nil
	case "-":
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
