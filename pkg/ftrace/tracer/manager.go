package tracer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/elfsym"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/logging"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/riscv"
)

// ErrUnbalancedReturn is returned when a return target matches no frame on
// the stack and no anonymous frame could explain it.
var ErrUnbalancedReturn = errors.New("tracer: return matches no frame")

// Option configures a Manager.
type Option func(*Manager)

// WithShowContext records argument registers on entry and return values on
// exit.
func WithShowContext(on bool) Option {
	return func(m *Manager) { m.showContext = on }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.clock = now }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager follows calls and returns of the traced program and keeps its
// call stack and a chronological log of entered frames. It is not safe for
// concurrent use.
type Manager struct {
	showContext bool
	// images[0] is the main image; images[i].ID == i.
	images []*elfsym.Reader
	cur    int

	log   []*Frame
	times []time.Duration
	stack []*Frame

	clock  func() time.Time
	origin time.Time
	logger logging.Logger
}

// NewManager creates a Manager over a main image and optional prog images.
// The prog readers are sorted by start address and their IDs rewritten to
// their position (1-based).
func NewManager(main *elfsym.Reader, progs []*elfsym.Reader, opts ...Option) (*Manager, error) {
	if main == nil {
		return nil, errors.New("tracer: main image is required")
	}
	m := &Manager{
		clock:  time.Now,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.origin = m.clock()

	sorted := make([]*elfsym.Reader, len(progs))
	copy(sorted, progs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	main.ID = 0
	m.images = append(m.images, main)
	for i, r := range sorted {
		r.ID = i + 1
		m.images = append(m.images, r)
	}

	if elfsym.Overlaps(main, sorted) {
		m.logger.Warn(context.Background(), "loaded images overlap; lookups may resolve to the wrong image",
			"images", len(m.images))
	}
	return m, nil
}

// Images returns the loaded images, main first.
func (m *Manager) Images() []*elfsym.Reader {
	out := make([]*elfsym.Reader, len(m.images))
	copy(out, m.images)
	return out
}

// ShowContext reports whether argument and return registers are recorded.
func (m *Manager) ShowContext() bool { return m.showContext }

// Stack returns the current call stack, bottom first.
func (m *Manager) Stack() []*Frame {
	out := make([]*Frame, len(m.stack))
	copy(out, m.stack)
	return out
}

// Log returns the chronological frame log.
func (m *Manager) Log() []*Frame {
	out := make([]*Frame, len(m.log))
	copy(out, m.log)
	return out
}

// Elapsed returns the time offset of the last log entry.
func (m *Manager) Elapsed() time.Duration {
	if len(m.times) == 0 {
		return 0
	}
	return m.times[len(m.times)-1]
}

// Step feeds one executed instruction. Instructions other than jal/jalr are
// ignored.
func (m *Manager) Step(pc uint64, inst uint32, regs *[riscv.NumRegs]uint64) error {
	if regs == nil {
		return errors.New("tracer: register file is required")
	}
	t, ok := riscv.Decode(pc, inst, regs)
	if !ok {
		return nil
	}
	if t.Kind == riscv.Return {
		return m.Return(t.Target, regs[riscv.RegA0], regs[riscv.RegA1])
	}
	m.Enter(t.Target, regs)
	return nil
}

// Enter records a jump to target. Jumps that stay inside the most recently
// logged frame are ignored. regs may be nil.
func (m *Manager) Enter(target uint64, regs *[riscv.NumRegs]uint64) {
	args := m.captureArgs(regs)
	if len(m.log) == 0 {
		m.enterFirst(target, args)
		return
	}
	if m.inBounds(m.log[len(m.log)-1], target) {
		return
	}
	m.enterNew(target, args)
}

// Return records a return landing on target with return values (a0, a1).
func (m *Manager) Return(target, a0, a1 uint64) error {
	if len(m.log) == 0 {
		m.logger.Debug(context.Background(), "return before first call ignored", "target", target)
		return nil
	}
	now := m.now()
	cur := m.log[len(m.log)-1]
	cur.End = now
	if m.showContext {
		cur.Ret = &[2]uint64{a0, a1}
	}

	idx := -1
	sawAnonymous := false
	for i, f := range m.stack {
		if f.Anonymous() {
			sawAnonymous = true
			continue
		}
		if m.inBounds(f, target) {
			idx = i
			break
		}
	}

	switch {
	case idx >= 0 && idx == len(m.stack)-1:
		// Landing in the top frame: a recursive call that was never pushed.
		return nil
	case idx >= 0:
		for len(m.stack) > idx+1 {
			top := m.stack[len(m.stack)-1]
			m.stack = m.stack[:len(m.stack)-1]
			top.End = now
			top.Args = nil
		}
		back := m.stack[idx]
		m.cur = back.Image
		m.appendLog(back, now)
		return nil
	case !sawAnonymous:
		return fmt.Errorf("%w: target %#x, depth %d", ErrUnbalancedReturn, target, len(m.stack))
	default:
		if !cur.Anonymous() {
			m.appendLog(&Frame{Image: NoImage, Kind: elfsym.External, Start: now, End: now}, now)
		}
		return nil
	}
}

func (m *Manager) enterFirst(target uint64, args []uint64) {
	m.cur = 0
	now := m.now()
	main := m.images[0]
	if fn, ok := main.Find(target); ok {
		m.push(&Frame{Image: 0, FuncID: fn.ID, Kind: elfsym.Local, Args: args, Start: now, End: now}, now)
		return
	}
	lo, hi := main.Gap(target)
	m.push(&Frame{Image: 0, Kind: elfsym.External, lo: lo, hi: hi, Args: args, Start: now, End: now}, now)
}

func (m *Manager) enterNew(target uint64, args []uint64) {
	switch {
	case m.images[m.cur].Contains(target):
		m.enterImage(m.cur, target, args)
	case m.images[0].Contains(target):
		m.cur = 0
		m.enterImage(0, target, args)
	default:
		for i := 1; i < len(m.images); i++ {
			if m.images[i].Contains(target) {
				m.cur = i
				m.enterImage(i, target, args)
				return
			}
		}
		m.logger.Debug(context.Background(), "jump outside every image", "target", target)
		now := m.now()
		m.pushAnonymous(&Frame{Image: NoImage, Kind: elfsym.External, Args: args, Start: now, End: now}, now)
	}
}

func (m *Manager) enterImage(img int, target uint64, args []uint64) {
	now := m.now()
	r := m.images[img]
	if fn, ok := r.Find(target); ok {
		m.push(&Frame{Image: img, FuncID: fn.ID, Kind: elfsym.Local, Args: args, Start: now, End: now}, now)
		return
	}
	lo, hi := r.Gap(target)
	m.pushAnonymous(&Frame{Image: img, Kind: elfsym.External, lo: lo, hi: hi, Args: args, Start: now, End: now}, now)
}

func (m *Manager) push(f *Frame, now time.Duration) {
	m.appendLog(f, now)
	m.stack = append(m.stack, f)
}

// pushAnonymous never places two anonymous frames next to each other, in
// the log or on the stack.
func (m *Manager) pushAnonymous(f *Frame, now time.Duration) {
	if len(m.log) == 0 || !m.log[len(m.log)-1].Anonymous() {
		m.appendLog(f, now)
	}
	if len(m.stack) == 0 || !m.stack[len(m.stack)-1].Anonymous() {
		m.stack = append(m.stack, f)
	}
}

func (m *Manager) appendLog(f *Frame, now time.Duration) {
	m.log = append(m.log, f)
	m.times = append(m.times, now)
}

func (m *Manager) inBounds(f *Frame, pc uint64) bool {
	if f.Image == NoImage || f.Image >= len(m.images) {
		return false
	}
	if f.Anonymous() {
		return pc >= f.lo && pc < f.hi
	}
	fn, ok := m.images[f.Image].Func(f.FuncID)
	return ok && fn.Contains(pc)
}

func (m *Manager) captureArgs(regs *[riscv.NumRegs]uint64) []uint64 {
	if !m.showContext || regs == nil {
		return nil
	}
	args := make([]uint64, riscv.RegA7-riscv.RegA0+1)
	copy(args, regs[riscv.RegA0:riscv.RegA7+1])
	return args
}

func (m *Manager) now() time.Duration {
	return m.clock().Sub(m.origin)
}

// Func resolves the symbol behind a frame. ok is false for anonymous frames.
func (m *Manager) Func(f *Frame) (fn elfsym.Func, ok bool) {
	if f.Anonymous() || f.Image == NoImage || f.Image >= len(m.images) {
		return elfsym.Func{}, false
	}
	return m.images[f.Image].Func(f.FuncID)
}

// Describe renders a frame as image@function.
func (m *Manager) Describe(f *Frame) string {
	image := "unknown"
	if f.Image != NoImage && f.Image < len(m.images) {
		image = m.images[f.Image].Name
	}
	if fn, ok := m.Func(f); ok {
		return image + "@" + fn.Name
	}
	return image + "@unknown"
}
