package tracefile

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	recs := make([]Record, 3)
	for i := range recs {
		recs[i].PC = 0x8000_0000 + uint64(i)*4
		recs[i].Inst = 0x040000ef + uint32(i)
		for r := range recs[i].Regs {
			recs[i].Regs[r] = uint64(i*100 + r)
		}
	}
	return recs
}

func encode(t *testing.T, compress bool, recs []Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, compress)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func decodeAll(t *testing.T, data []byte) ([]Record, *Reader) {
	t.Helper()
	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()
	var got []Record
	require.NoError(t, r.ForEach(func(rec Record) error {
		got = append(got, rec)
		return nil
	}))
	return got, r
}

func TestPlainStream(t *testing.T) {
	recs := sampleRecords()
	data := encode(t, false, recs)

	assert.Equal(t, "FTRC", string(data[:4]))
	assert.Equal(t, byte(Version), data[4])
	assert.Len(t, data, 5+len(recs)*RecordSize)

	got, r := decodeAll(t, data)
	assert.False(t, r.Compressed())
	assert.Equal(t, recs, got)
}

func TestCompressedStream(t *testing.T) {
	recs := sampleRecords()
	data := encode(t, true, recs)
	assert.Equal(t, zstdMagic, data[:4])

	got, r := decodeAll(t, data)
	assert.True(t, r.Compressed())
	assert.Equal(t, recs, got)
}

func TestCompressedSurvivesClose(t *testing.T) {
	r, err := NewReader(bytes.NewReader(encode(t, true, sampleRecords())))
	require.NoError(t, err)
	r.Close()
	r.Close()
	assert.True(t, r.Compressed())
}

func TestEmptyStream(t *testing.T) {
	got, _ := decodeAll(t, encode(t, false, nil))
	assert.Empty(t, got)
}

func TestTruncatedRecord(t *testing.T) {
	data := encode(t, false, sampleRecords())
	r, err := NewReader(bytes.NewReader(data[:len(data)-10]))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := r.Next()
		require.NoError(t, err)
	}
	_, err = r.Next()
	require.ErrorIs(t, err, ErrTruncated)
}

func TestBadHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("ELF\x7f....")))
	require.ErrorIs(t, err, ErrBadMagic)

	_, err = NewReader(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrBadMagic)

	_, err = NewReader(bytes.NewReader([]byte("FTRC\x09")))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBadMagic))
}

func TestForEachStopsOnError(t *testing.T) {
	data := encode(t, false, sampleRecords())
	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = r.ForEach(func(Record) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}
