package tracer

import (
	"bufio"
	"fmt"
	"io"
)

const stackBanner = "========================STACK TRACE========================"

// WriteStack dumps the current call stack to w, innermost frame first and
// numbered @0. Symbol bounds are written in decimal.
func (m *Manager) WriteStack(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, stackBanner)
	for depth := 0; depth < len(m.stack); depth++ {
		f := m.stack[len(m.stack)-1-depth]
		fn, ok := m.Func(f)
		if !ok {
			fmt.Fprintf(bw, "@%d, function: unknown", depth)
		} else {
			fmt.Fprintf(bw, "@%d, function: %s, start: %d, end: %d", depth, fn.Name, fn.Start, fn.End)
		}
		if len(f.Args) > 0 {
			fmt.Fprintf(bw, ", args: %s", hexList(f.Args))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// WriteTrace dumps the chronological frame log to w, one entry per line with
// its offset from the first traced instruction.
func (m *Manager) WriteTrace(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, f := range m.log {
		fmt.Fprintf(bw, "[%12s] %s", m.times[i], m.Describe(f))
		if len(f.Args) > 0 {
			fmt.Fprintf(bw, " args=%s", hexList(f.Args))
		}
		if f.Ret != nil {
			fmt.Fprintf(bw, " ret=%s", hexList(f.Ret[:]))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

func hexList(values []uint64) string {
	buf := make([]byte, 0, len(values)*8+2)
	buf = append(buf, '[')
	for i, v := range values {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = fmt.Appendf(buf, "%#x", v)
	}
	return string(append(buf, ']'))
}
