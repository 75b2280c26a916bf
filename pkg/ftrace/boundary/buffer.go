package boundary

import (
	"fmt"
	"math"
	"unsafe"
)

// MaxPathLen bounds the NUL scan performed by CString for arguments that are
// passed without an explicit length.
const MaxPathLen = 300

// ForeignBuffer is a borrowed view of caller-owned memory. The zero value is
// an empty buffer.
type ForeignBuffer struct {
	ptr unsafe.Pointer
	n   uintptr
}

// NewForeignBuffer describes n bytes starting at ptr. Nothing is checked
// until the buffer is read.
func NewForeignBuffer(ptr unsafe.Pointer, n uintptr) ForeignBuffer {
	return ForeignBuffer{ptr: ptr, n: n}
}

// BufferOf returns a ForeignBuffer over Go memory. It is used by in-process
// callers and tests; b must stay alive for as long as the buffer is used.
func BufferOf(b []byte) ForeignBuffer {
	if len(b) == 0 {
		return ForeignBuffer{}
	}
	return ForeignBuffer{ptr: unsafe.Pointer(unsafe.SliceData(b)), n: uintptr(len(b))}
}

// Len returns the declared length.
func (b ForeignBuffer) Len() uintptr { return b.n }

// IsNull reports whether the pointer is null.
func (b ForeignBuffer) IsNull() bool { return b.ptr == nil }

// Validate checks the pointer and length without touching the memory.
func (b ForeignBuffer) Validate() error {
	if b.n == 0 {
		return nil
	}
	if b.IsNull() {
		return fmt.Errorf("%w: null pointer with length %d", ErrInvalidBuffer, b.n)
	}
	if uint64(b.n) > math.MaxInt {
		return fmt.Errorf("%w: length %d exceeds addressable size", ErrInvalidBuffer, b.n)
	}
	return nil
}

// Bytes returns a view aliasing the caller's memory. The slice is only valid
// until the exported call returns and must not be retained. A zero-length
// buffer yields nil regardless of its pointer.
func (b ForeignBuffer) Bytes() ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.n == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(b.ptr), int(b.n)), nil
}

// Copy returns an owned copy of the buffer contents.
func (b ForeignBuffer) Copy() ([]byte, error) {
	view, err := b.Bytes()
	if err != nil || view == nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// CString scans at most max bytes starting at ptr for a NUL terminator and
// returns the buffer that precedes it. A null pointer, or no terminator
// within max bytes, is reported as ErrInvalidBuffer.
func CString(ptr unsafe.Pointer, max int) (ForeignBuffer, error) {
	if ptr == nil {
		return ForeignBuffer{}, fmt.Errorf("%w: null string pointer", ErrInvalidBuffer)
	}
	for i := 0; i < max; i++ {
		if *(*byte)(unsafe.Add(ptr, i)) == 0 {
			return ForeignBuffer{ptr: ptr, n: uintptr(i)}, nil
		}
	}
	return ForeignBuffer{}, fmt.Errorf("%w: no terminator within %d bytes", ErrInvalidBuffer, max)
}

// GoString copies a NUL-terminated C string of at most MaxPathLen bytes.
func GoString(ptr unsafe.Pointer) (string, error) {
	buf, err := CString(ptr, MaxPathLen)
	if err != nil {
		return "", err
	}
	b, err := buf.Copy()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
