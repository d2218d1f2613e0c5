package blob

import "fmt"

// Writer accumulates an encoded blob.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded blob. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// WriteByte appends a single byte. It never fails; the error satisfies
// io.ByteWriter.
func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

// WriteCompressedUint appends v using the shortest compressed form.
func (w *Writer) WriteCompressedUint(v uint32) error {
	switch {
	case v < 0x80:
		w.buf = append(w.buf, byte(v))
	case v < 0x4000:
		w.buf = append(w.buf, byte(v>>8)|0x80, byte(v))
	case v <= MaxCompressedUint:
		w.buf = append(w.buf, byte(v>>24)|0xC0, byte(v>>16), byte(v>>8), byte(v))
	default:
		return fmt.Errorf("%w: %d does not fit a compressed unsigned integer", ErrStreamOverrun, v)
	}
	return nil
}

// WriteCompressedInt appends v using the shortest compressed signed form.
func (w *Writer) WriteCompressedInt(v int32) error {
	switch {
	case v >= -0x40 && v < 0x40:
		x := uint32(v) & 0x7F
		w.buf = append(w.buf, byte((x<<1|x>>6)&0x7F))
	case v >= -0x2000 && v < 0x2000:
		x := uint32(v) & 0x3FFF
		x = (x<<1 | x>>13) & 0x3FFF
		w.buf = append(w.buf, byte(x>>8)|0x80, byte(x))
	case v >= MinCompressedInt && v <= MaxCompressedInt:
		x := uint32(v) & 0x1FFFFFFF
		x = (x<<1 | x>>28) & 0x1FFFFFFF
		w.buf = append(w.buf, byte(x>>24)|0xC0, byte(x>>16), byte(x>>8), byte(x))
	default:
		return fmt.Errorf("%w: %d does not fit a compressed signed integer", ErrStreamOverrun, v)
	}
	return nil
}
