package tracer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/elfsym"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/riscv"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Microsecond)
	return c.now
}

func kernel(t *testing.T) *elfsym.Reader {
	t.Helper()
	r, err := elfsym.New(0, "kernel", []elfsym.Func{
		{Name: "_start", Start: 0x8000_0000, End: 0x8000_0040},
		{Name: "main", Start: 0x8000_0040, End: 0x8000_0100},
		{Name: "memcpy", Start: 0x8000_0100, End: 0x8000_0180},
		{Name: "halt", Start: 0x8000_0200, End: 0x8000_0210},
	})
	require.NoError(t, err)
	return r
}

func prog(t *testing.T, name string, start uint64) *elfsym.Reader {
	t.Helper()
	r, err := elfsym.New(9, name, []elfsym.Func{
		{Name: name + "_main", Start: start, End: start + 0x100},
		{Name: name + "_exit", Start: start + 0x100, End: start + 0x120},
	})
	require.NoError(t, err)
	return r
}

func newManager(t *testing.T, progs []*elfsym.Reader, opts ...Option) *Manager {
	t.Helper()
	clock := &fakeClock{now: time.Unix(0, 0)}
	m, err := NewManager(kernel(t), progs, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return m
}

func names(m *Manager, frames []*Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = m.Describe(f)
	}
	return out
}

func TestNestedCallsAndReturns(t *testing.T) {
	m := newManager(t, nil)

	m.Enter(0x8000_0000, nil)
	m.Enter(0x8000_0040, nil)
	m.Enter(0x8000_0050, nil) // stays inside main
	m.Enter(0x8000_0100, nil)
	assert.Equal(t, []string{"kernel@_start", "kernel@main", "kernel@memcpy"}, names(m, m.Stack()))
	assert.Len(t, m.Log(), 3)

	require.NoError(t, m.Return(0x8000_0080, 0, 0))
	assert.Equal(t, []string{"kernel@_start", "kernel@main"}, names(m, m.Stack()))

	require.NoError(t, m.Return(0x8000_0010, 0, 0))
	assert.Equal(t, []string{"kernel@_start"}, names(m, m.Stack()))
	assert.Equal(t,
		[]string{"kernel@_start", "kernel@main", "kernel@memcpy", "kernel@main", "kernel@_start"},
		names(m, m.Log()))

	// Returning into the top frame is an untracked recursive call.
	require.NoError(t, m.Return(0x8000_0010, 0, 0))
	assert.Len(t, m.Stack(), 1)
	assert.Len(t, m.Log(), 5)
}

func TestUnbalancedReturn(t *testing.T) {
	m := newManager(t, nil)
	m.Enter(0x8000_0040, nil)

	err := m.Return(0x7000_0000, 0, 0)
	require.ErrorIs(t, err, ErrUnbalancedReturn)
	assert.Len(t, m.Stack(), 1)
}

func TestReturnBeforeFirstCallIgnored(t *testing.T) {
	m := newManager(t, nil)
	require.NoError(t, m.Return(0x8000_0000, 0, 0))
	assert.Empty(t, m.Log())
	assert.Empty(t, m.Stack())
}

func TestAnonymousFramesCollapse(t *testing.T) {
	m := newManager(t, nil)

	m.Enter(0x8000_0000, nil)
	m.Enter(0x8000_01a0, nil) // gap between memcpy and halt
	m.Enter(0x8000_01b0, nil) // same gap
	m.Enter(0xdead_0000, nil) // outside every image

	stack := m.Stack()
	require.Len(t, stack, 2)
	assert.True(t, stack[1].Anonymous())
	assert.Equal(t, 0, stack[1].Image)
	assert.Equal(t, uint64(0x8000_0180), stack[1].lo)
	assert.Equal(t, uint64(0x8000_0200), stack[1].hi)
	assert.Equal(t, []string{"kernel@_start", "kernel@unknown"}, names(m, m.Log()))

	require.NoError(t, m.Return(0x8000_0010, 0, 0))
	assert.Equal(t, []string{"kernel@_start"}, names(m, m.Stack()))
}

func TestReturnThroughExternalCode(t *testing.T) {
	m := newManager(t, nil)

	m.Enter(0x8000_0000, nil)
	m.Enter(0xdead_0000, nil)
	require.Len(t, m.Stack(), 2)
	assert.Equal(t, NoImage, m.Stack()[1].Image)

	// Unknown target with an external frame on the stack is tolerated.
	require.NoError(t, m.Return(0xbeef_0000, 0, 0))
	assert.Len(t, m.Log(), 2)

	m.Enter(0x8000_0040, nil)
	require.NoError(t, m.Return(0xbeef_0000, 0, 0))
	assert.Equal(t,
		[]string{"kernel@_start", "unknown@unknown", "kernel@main", "unknown@unknown"},
		names(m, m.Log()))
}

func TestProgImagesSortedAndResolved(t *testing.T) {
	app := prog(t, "app", 0x9000_0000)
	lib := prog(t, "lib", 0x4000_0000)
	m := newManager(t, []*elfsym.Reader{app, lib})

	images := m.Images()
	require.Len(t, images, 3)
	assert.Equal(t, "kernel", images[0].Name)
	assert.Equal(t, "lib", images[1].Name)
	assert.Equal(t, 1, images[1].ID)
	assert.Equal(t, "app", images[2].Name)
	assert.Equal(t, 2, images[2].ID)

	m.Enter(0x8000_0000, nil)
	m.Enter(0x9000_0010, nil)
	m.Enter(0x9000_0104, nil)
	m.Enter(0x4000_0000, nil)
	m.Enter(0x8000_0200, nil)
	assert.Equal(t,
		[]string{"kernel@_start", "app@app_main", "app@app_exit", "lib@lib_main", "kernel@halt"},
		names(m, m.Stack()))

	require.NoError(t, m.Return(0x9000_0020, 0, 0))
	assert.Equal(t, []string{"kernel@_start", "app@app_main"}, names(m, m.Stack()))
}

func TestStepShowContext(t *testing.T) {
	m := newManager(t, nil, WithShowContext(true))
	require.True(t, m.ShowContext())

	var regs [riscv.NumRegs]uint64
	for i := riscv.RegA0; i <= riscv.RegA7; i++ {
		regs[i] = uint64(i - riscv.RegA0 + 1)
	}

	m.Enter(0x8000_0000, nil)
	// jal ra, +0x40
	require.NoError(t, m.Step(0x8000_0000, 0x040000ef, &regs))
	main := m.Stack()[1]
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8}, main.Args)

	// nop is ignored
	require.NoError(t, m.Step(0x8000_0044, 0x00000013, &regs))

	regs[riscv.RegRA] = 0x8000_0008
	regs[riscv.RegA0] = 42
	regs[riscv.RegA1] = 7
	require.NoError(t, m.Step(0x8000_00fc, 0x00008067, &regs))

	require.NotNil(t, main.Ret)
	assert.Equal(t, [2]uint64{42, 7}, *main.Ret)
	assert.Nil(t, main.Args, "popped frames drop their arguments")
	assert.Greater(t, int64(main.End), int64(main.Start))
	assert.Len(t, m.Stack(), 1)
}

func TestStepRequiresRegisters(t *testing.T) {
	m := newManager(t, nil)
	require.Error(t, m.Step(0, 0x040000ef, nil))
}

func TestContextOffByDefault(t *testing.T) {
	m := newManager(t, nil)
	var regs [riscv.NumRegs]uint64
	regs[riscv.RegA0] = 99
	m.Enter(0x8000_0000, &regs)
	assert.Nil(t, m.Stack()[0].Args)
}

func TestWriteStack(t *testing.T) {
	m := newManager(t, nil, WithShowContext(true))
	var regs [riscv.NumRegs]uint64
	regs[riscv.RegA0] = 0x10

	m.Enter(0x8000_0000, nil)
	m.Enter(0x8000_0040, &regs)
	m.Enter(0xdead_0000, nil)

	var buf bytes.Buffer
	require.NoError(t, m.WriteStack(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, stackBanner, lines[0])
	assert.Equal(t, "@0, function: unknown", lines[1])
	assert.Equal(t, "@1, function: main, start: 2147483712, end: 2147483904, args: [0x10 0x0 0x0 0x0 0x0 0x0 0x0 0x0]", lines[2])
	assert.Equal(t, "@2, function: _start, start: 2147483648, end: 2147483712", lines[3])
}

func TestWriteTrace(t *testing.T) {
	m := newManager(t, nil)
	m.Enter(0x8000_0000, nil)
	m.Enter(0x8000_0100, nil)
	require.NoError(t, m.Return(0x8000_0004, 0, 0))

	var buf bytes.Buffer
	require.NoError(t, m.WriteTrace(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "] kernel@_start"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "] kernel@memcpy"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "] kernel@_start"), lines[2])
	assert.Positive(t, int64(m.Elapsed()))
}

func TestNewManagerRequiresMain(t *testing.T) {
	_, err := NewManager(nil, nil)
	require.Error(t, err)
}

func TestBuilder(t *testing.T) {
	b := NewBuilder("/tmp/kernel.elf")
	assert.Equal(t, "/tmp/kernel.elf", b.MainPath())
	assert.False(t, b.ShowContext())

	b.SetShowContext(true)
	b.AddProgPath("a.elf")
	b.AddProgPath("b.elf")
	b.AddProgPath("a.elf")
	assert.True(t, b.ShowContext())
	assert.Equal(t, []string{"a.elf", "b.elf"}, b.ProgPaths())
}

func TestBuilderBuildErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewBuilder(filepath.Join(dir, "missing.elf")).Build()
	require.Error(t, err)

	exe, err := os.Executable()
	require.NoError(t, err)
	b := NewBuilder(exe)
	b.AddProgPath(filepath.Join(dir, "missing.elf"))
	_, err = b.Build()
	require.Error(t, err)
}
