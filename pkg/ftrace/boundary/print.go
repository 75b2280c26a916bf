package boundary

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// TextPolicy selects how Print handles bytes that are not valid UTF-8.
type TextPolicy int32

const (
	// PolicyReject fails the call with ErrEncoding.
	PolicyReject TextPolicy = iota
	// PolicyReplace substitutes U+FFFD for every run of invalid bytes.
	PolicyReplace
)

func (p TextPolicy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyReplace:
		return "replace"
	default:
		return fmt.Sprintf("TextPolicy(%d)", int32(p))
	}
}

// Valid reports whether p is a known policy.
func (p TextPolicy) Valid() bool {
	return p == PolicyReject || p == PolicyReplace
}

// ParseTextPolicy maps a configuration string to a policy. The empty string
// selects PolicyReject.
func ParseTextPolicy(s string) (TextPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject", "strict":
		return PolicyReject, nil
	case "replace", "lossy":
		return PolicyReplace, nil
	default:
		return PolicyReject, fmt.Errorf("boundary: unknown text policy %q", s)
	}
}

// Add returns left + right modulo 2^W, where W is the pointer width.
func Add(left, right uintptr) uintptr {
	return left + right
}

// Printer writes foreign text to an output collaborator. A Printer is
// immutable after construction and safe for concurrent use when its writer
// is.
type Printer struct {
	out     io.Writer
	policy  TextPolicy
	newline bool
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithPolicy sets the text policy.
func WithPolicy(p TextPolicy) PrinterOption {
	return func(pr *Printer) { pr.policy = p }
}

// WithNewline appends '\n' to every non-empty print.
func WithNewline(on bool) PrinterOption {
	return func(pr *Printer) { pr.newline = on }
}

// NewPrinter returns a Printer writing to out.
func NewPrinter(out io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{out: out, policy: PolicyReject}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the configured text policy.
func (p *Printer) Policy() TextPolicy { return p.policy }

// Print validates buf and writes its contents. The declared length is
// authoritative; embedded NUL bytes are written unchanged.
func (p *Printer) Print(buf ForeignBuffer) error {
	view, err := buf.Bytes()
	if err != nil {
		return err
	}
	return p.PrintBytes(view)
}

// PrintBytes applies the text policy to b and writes it with a single Write
// call. b is not retained.
func (p *Printer) PrintBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}

	payload := b
	if !utf8.Valid(b) {
		switch p.policy {
		case PolicyReplace:
			payload = []byte(strings.ToValidUTF8(string(b), string(utf8.RuneError)))
		default:
			return fmt.Errorf("%w: %d bytes", ErrEncoding, len(b))
		}
	}

	if p.newline {
		framed := make([]byte, len(payload)+1)
		copy(framed, payload)
		framed[len(payload)] = '\n'
		payload = framed
	}

	if p.out == nil {
		return fmt.Errorf("%w: no output configured", ErrWriteFailure)
	}
	n, err := p.out.Write(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	if n != len(payload) {
		return fmt.Errorf("%w: %v", ErrWriteFailure, io.ErrShortWrite)
	}
	return nil
}
