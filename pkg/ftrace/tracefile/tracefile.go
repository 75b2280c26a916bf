// Package tracefile stores the instruction stream fed to check_instruction
// so a run can be replayed offline by the ftrace CLI.
//
// A file starts with the magic "FTRC" and a version byte, followed by
// fixed-size little-endian records. The whole file may be wrapped in a zstd
// stream; readers detect that automatically.
package tracefile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/riscv"
)

// Version is the record layout version written by this package.
const Version = 1

// RecordSize is the encoded size of one Record.
const RecordSize = 8 + 4 + riscv.NumRegs*8

var (
	magic     = []byte("FTRC")
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

var (
	// ErrBadMagic is returned for input that is not a trace file.
	ErrBadMagic = errors.New("tracefile: bad magic")
	// ErrTruncated is returned when the input ends inside a record.
	ErrTruncated = errors.New("tracefile: truncated record")
)

// Record is one executed instruction and the register file at that point.
type Record struct {
	PC   uint64
	Inst uint32
	Regs [riscv.NumRegs]uint64
}

// Writer appends records to a trace file.
type Writer struct {
	bw  *bufio.Writer
	enc *zstd.Encoder
	buf [RecordSize]byte
}

// NewWriter writes the header to w and returns a Writer. When compress is
// set the stream is zstd-compressed. Close must be called to flush.
func NewWriter(w io.Writer, compress bool) (*Writer, error) {
	tw := &Writer{}
	if compress {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("tracefile: zstd writer: %w", err)
		}
		tw.enc = enc
		w = enc
	}
	tw.bw = bufio.NewWriter(w)
	if _, err := tw.bw.Write(magic); err != nil {
		return nil, err
	}
	if err := tw.bw.WriteByte(Version); err != nil {
		return nil, err
	}
	return tw, nil
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	binary.LittleEndian.PutUint64(w.buf[0:8], rec.PC)
	binary.LittleEndian.PutUint32(w.buf[8:12], rec.Inst)
	for i, r := range rec.Regs {
		binary.LittleEndian.PutUint64(w.buf[12+i*8:], r)
	}
	_, err := w.bw.Write(w.buf[:])
	return err
}

// Close flushes buffered records and ends the zstd stream if any. It does
// not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.enc != nil {
		return w.enc.Close()
	}
	return nil
}

// Reader iterates over the records of a trace file.
type Reader struct {
	r          io.Reader
	dec        *zstd.Decoder
	compressed bool
	buf        [RecordSize]byte
}

// NewReader validates the header of r and returns a Reader.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	tr := &Reader{r: br}
	if bytes.Equal(peek, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("tracefile: zstd reader: %w", err)
		}
		tr.dec = dec
		tr.compressed = true
		tr.r = bufio.NewReader(dec)
	}

	var header [5]byte
	if _, err := io.ReadFull(tr.r, header[:]); err != nil {
		tr.Close()
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if !bytes.Equal(header[:4], magic) {
		tr.Close()
		return nil, ErrBadMagic
	}
	if header[4] != Version {
		tr.Close()
		return nil, fmt.Errorf("tracefile: unsupported version %d", header[4])
	}
	return tr, nil
}

// Next returns the next record. io.EOF marks a clean end of stream.
func (r *Reader) Next() (Record, error) {
	n, err := io.ReadFull(r.r, r.buf[:])
	switch {
	case n == 0 && errors.Is(err, io.EOF):
		return Record{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Record{}, fmt.Errorf("%w: %d of %d bytes", ErrTruncated, n, RecordSize)
	case err != nil:
		return Record{}, err
	}

	rec := Record{
		PC:   binary.LittleEndian.Uint64(r.buf[0:8]),
		Inst: binary.LittleEndian.Uint32(r.buf[8:12]),
	}
	for i := range rec.Regs {
		rec.Regs[i] = binary.LittleEndian.Uint64(r.buf[12+i*8:])
	}
	return rec, nil
}

// Compressed reports whether the input was zstd-compressed. It stays valid
// after Close.
func (r *Reader) Compressed() bool { return r.compressed }

// Close releases decoder resources. It does not close the underlying reader.
func (r *Reader) Close() {
	if r.dec != nil {
		r.dec.Close()
		r.dec = nil
	}
}

// ForEach calls fn for every remaining record and stops at the first error.
func (r *Reader) ForEach(fn func(Record) error) error {
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
