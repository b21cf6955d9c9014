package formats

import (
	"encoding/binary"
	"fmt"
	"math"
)

// recordReader is a little-endian cursor over a fixed byte buffer.
// Reads never go past the end of the buffer; they fail with ErrTruncatedBSPData.
type recordReader struct {
	data []byte
	off  int
}

func newRecordReader(data []byte) *recordReader {
	return &recordReader{data: data}
}

// Len returns the size of the underlying buffer.
func (r *recordReader) Len() int {
	return len(r.data)
}

// Pos returns the cursor position.
func (r *recordReader) Pos() int {
	return r.off
}

// Seek moves the cursor to an absolute offset.
func (r *recordReader) Seek(offset int) error {
	if offset < 0 || offset > len(r.data) {
		return fmt.Errorf("%w: seek to %d beyond %d bytes", ErrTruncatedBSPData, offset, len(r.data))
	}
	r.off = offset
	return nil
}

func (r *recordReader) need(n int) error {
	if n < 0 || r.off+n > len(r.data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedBSPData, n, r.off, len(r.data)-r.off)
	}
	return nil
}

// ReadBytes returns the next n bytes without copying them.
func (r *recordReader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

// ReadU32 reads a little-endian uint32.
func (r *recordReader) ReadU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// ReadI32 reads a little-endian int32.
func (r *recordReader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadF32 reads a little-endian IEEE-754 float32.
func (r *recordReader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// ReadI8 reads a single signed byte.
func (r *recordReader) ReadI8() (int8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := int8(r.data[r.off])
	r.off++
	return v, nil
}

// readI32s fills dst with consecutive int32 values.
func (r *recordReader) readI32s(dst []int32) error {
	for i := range dst {
		v, err := r.ReadI32()
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

// readF32s fills dst with consecutive float32 values.
func (r *recordReader) readF32s(dst []float32) error {
	for i := range dst {
		v, err := r.ReadF32()
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}
