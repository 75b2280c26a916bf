package ftrace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/boundary"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/logging"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/riscv"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/tracefile"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/tracer"
)

// HostOption configures a Host.
type HostOption func(*Host)

// WithOutput sets the writer behind Print. It defaults to os.Stdout.
func WithOutput(w io.Writer) HostOption {
	return func(h *Host) { h.out = w }
}

// WithLogger sets the diagnostics logger. A host with an explicit logger
// ignores log_level from configs.
func WithLogger(l logging.Logger) HostOption {
	return func(h *Host) {
		h.logger = l
		h.fixedLogger = true
	}
}

// WithTracerOptions passes options to every Manager the host builds.
func WithTracerOptions(opts ...tracer.Option) HostOption {
	return func(h *Host) { h.tracerOpts = append(h.tracerOpts, opts...) }
}

// Host owns the tracer and printer state behind the C surface. All methods
// are safe for concurrent use. Print does not contend with tracing.
type Host struct {
	mu          sync.Mutex
	logger      logging.Logger
	fixedLogger bool
	tracerOpts  []tracer.Option

	builder  *tracer.Builder
	manager  *tracer.Manager
	recorder *recording

	out     io.Writer
	policy  boundary.TextPolicy
	newline bool
	printer atomic.Pointer[boundary.Printer]
}

type recording struct {
	file *os.File
	w    *tracefile.Writer
}

// NewHost returns a Host with no builder, printing with PolicyReject and no
// trailing newline.
func NewHost(opts ...HostOption) *Host {
	h := &Host{out: os.Stdout}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logging.NewStderr(logging.LevelFromEnv(slog.LevelWarn))
	}
	h.swapPrinter()
	return h
}

var (
	defaultHost     *Host
	defaultHostOnce sync.Once
)

// Default returns the process host used by the C surface.
func Default() *Host {
	defaultHostOnce.Do(func() {
		defaultHost = NewHost()
	})
	return defaultHost
}

// Logger returns the host's diagnostics logger.
func (h *Host) Logger() logging.Logger {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.logger
}

// StartBuilder begins a new tracer configuration rooted at mainPath. A
// previous unbuilt configuration is discarded.
func (h *Host) StartBuilder(mainPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.manager != nil {
		return ErrAlreadyBuilt
	}
	if h.builder != nil {
		h.logger.Warn(context.Background(), "discarding unbuilt tracer configuration",
			"main_path", h.builder.MainPath())
	}
	h.builder = tracer.NewBuilder(mainPath)
	return nil
}

// SetShowContext toggles argument and return capture on the pending builder.
func (h *Host) SetShowContext(on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.builder == nil {
		return ErrNoBuilder
	}
	h.builder.SetShowContext(on)
	return nil
}

// AddProgPath registers an extra image on the pending builder.
func (h *Host) AddProgPath(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.builder == nil {
		return ErrNoBuilder
	}
	h.builder.AddProgPath(path)
	return nil
}

// Build loads every registered image and starts tracing.
func (h *Host) Build() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.manager != nil {
		return ErrAlreadyBuilt
	}
	if h.builder == nil {
		return ErrNoBuilder
	}
	m, err := h.builder.Build(h.managerOptions(h.logger)...)
	if err != nil {
		return err
	}
	h.installManager(m)
	return nil
}

func (h *Host) managerOptions(l logging.Logger) []tracer.Option {
	return append([]tracer.Option{tracer.WithLogger(l)}, h.tracerOpts...)
}

func (h *Host) installManager(m *tracer.Manager) {
	h.manager = m
	h.builder = nil
	h.logger.Info(context.Background(), "tracer built",
		"images", len(m.Images()), "show_context", m.ShowContext())
}

// Built reports whether Build succeeded.
func (h *Host) Built() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.manager != nil
}

// CheckInstruction feeds one executed instruction. Before Build it is a
// no-op apart from recording.
func (h *Host) CheckInstruction(pc uint64, inst uint32, regs [riscv.NumRegs]uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recorder != nil {
		if err := h.recorder.w.Write(tracefile.Record{PC: pc, Inst: inst, Regs: regs}); err != nil {
			return fmt.Errorf("record instruction: %w", err)
		}
	}
	if h.manager == nil {
		return nil
	}
	return h.manager.Step(pc, inst, &regs)
}

// DumpStack writes the current call stack to the file at path, replacing it.
func (h *Host) DumpStack(path string) (err error) {
	if path == "" {
		return fmt.Errorf("%w: empty stack dump path", ErrInvalidConfig)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.manager == nil {
		return ErrNotBuilt
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stack dump: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return h.manager.WriteStack(f)
}

// WriteStack writes the current call stack to w.
func (h *Host) WriteStack(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.manager == nil {
		return ErrNotBuilt
	}
	return h.manager.WriteStack(w)
}

// WriteTrace writes the chronological call log to w.
func (h *Host) WriteTrace(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.manager == nil {
		return ErrNotBuilt
	}
	return h.manager.WriteTrace(w)
}

// Print writes a foreign buffer with the current printer.
func (h *Host) Print(buf boundary.ForeignBuffer) error {
	return h.printer.Load().Print(buf)
}

// SetTextPolicy changes how Print treats invalid UTF-8.
func (h *Host) SetTextPolicy(p boundary.TextPolicy) error {
	if !p.Valid() {
		return fmt.Errorf("%w: text policy %d", ErrInvalidConfig, int32(p))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.policy = p
	h.swapPrinter()
	return nil
}

// TextPolicy returns the active text policy.
func (h *Host) TextPolicy() boundary.TextPolicy {
	return h.printer.Load().Policy()
}

func (h *Host) swapPrinter() {
	h.printer.Store(boundary.NewPrinter(h.out,
		boundary.WithPolicy(h.policy),
		boundary.WithNewline(h.newline)))
}

// StartRecording captures every subsequent CheckInstruction call to a trace
// file at path.
func (h *Host) StartRecording(path string, compress bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recorder != nil {
		return fmt.Errorf("%w: already recording", ErrInvalidConfig)
	}
	rec, err := openRecording(path, compress)
	if err != nil {
		return err
	}
	h.installRecording(rec, path, compress)
	return nil
}

func openRecording(path string, compress bool) (*recording, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	w, err := tracefile.NewWriter(f, compress)
	if err != nil {
		return nil, errors.Join(err, f.Close(), os.Remove(path))
	}
	return &recording{file: f, w: w}, nil
}

func (h *Host) installRecording(rec *recording, path string, compress bool) {
	h.recorder = rec
	h.logger.Info(context.Background(), "recording instructions", "path", path, "compress", compress)
}

// StopRecording flushes and closes the recording, if any.
func (h *Host) StopRecording() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recorder == nil {
		return nil
	}
	rec := h.recorder
	h.recorder = nil
	return errors.Join(rec.w.Close(), rec.file.Close())
}

// ApplyConfig applies printer and logging settings, starts a recording when
// configured, and builds the tracer when MainPath is set. Every step that can
// fail runs before any host state changes, so a failed call leaves the host
// as it was.
func (h *Host) ApplyConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cfg.MainPath != "" && h.manager != nil {
		return ErrAlreadyBuilt
	}
	if cfg.RecordPath != "" && h.recorder != nil {
		return fmt.Errorf("%w: already recording", ErrInvalidConfig)
	}

	logger := h.logger
	if cfg.LogLevel != "" && !h.fixedLogger {
		logger = logging.NewStderr(logging.LevelFromEnv(cfg.Level(slog.LevelWarn)))
	}

	var m *tracer.Manager
	if cfg.MainPath != "" {
		b := tracer.NewBuilder(cfg.MainPath)
		b.SetShowContext(cfg.ShowContext)
		for _, p := range cfg.ProgPaths {
			b.AddProgPath(p)
		}
		var err error
		if m, err = b.Build(h.managerOptions(logger)...); err != nil {
			return err
		}
	}

	if cfg.RecordPath != "" {
		rec, err := openRecording(cfg.RecordPath, cfg.RecordCompress)
		if err != nil {
			return err
		}
		h.installRecording(rec, cfg.RecordPath, cfg.RecordCompress)
	}

	h.logger = logger
	h.policy = cfg.Policy()
	h.newline = cfg.AppendNewline
	h.swapPrinter()
	if m != nil {
		if h.builder != nil {
			h.logger.Warn(context.Background(), "discarding unbuilt tracer configuration",
				"main_path", h.builder.MainPath())
		}
		h.installManager(m)
	}
	return nil
}

// ApplyEnv loads and applies the config named by FTRACE_CONFIG. It does
// nothing when the variable is unset.
func ApplyEnv(h *Host) error {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return nil
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	return h.ApplyConfig(cfg)
}
