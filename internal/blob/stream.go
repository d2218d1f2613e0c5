// Metadata blob stream reader.
// Implements the ECMA-335 compressed integer encodings (II.23.2).
package blob

import (
	"errors"
	"fmt"
)

var (
	ErrStreamEOF     = errors.New("blob: unexpected end of data")
	ErrStreamOverrun = errors.New("blob: value too large")
	ErrBadCompressed = errors.New("blob: invalid compressed integer")
)

// Compressed integer limits.
const (
	MaxCompressedUint = 0x1FFFFFFF
	MinCompressedInt  = -(1 << 28)
	MaxCompressedInt  = (1 << 28) - 1
)

// Reader reads a single blob. The blob ends at end; nothing past it is
// ever read.
type Reader struct {
	data []byte
	pos  int
	end  int
}

// NewReader creates a reader over the whole of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, pos: 0, end: len(data)}
}

// NewReaderAt creates a reader starting at offset within data.
func NewReaderAt(data []byte, offset int) *Reader {
	if offset > len(data) {
		offset = len(data)
	}
	return &Reader{data: data, pos: offset, end: len(data)}
}

// Position returns the current read position.
func (r *Reader) Position() int { return r.pos }

// SetPosition sets the read position.
func (r *Reader) SetPosition(pos int) {
	if pos > r.end {
		pos = r.end
	}
	if pos < 0 {
		pos = 0
	}
	r.pos = pos
}

// Remaining returns bytes left to read.
func (r *Reader) Remaining() int { return r.end - r.pos }

// PeekByte returns the next byte without advancing.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= r.end {
		return 0, ErrStreamEOF
	}
	return r.data[r.pos], nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= r.end {
		return 0, ErrStreamEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads n bytes into a new slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > r.end {
		return nil, ErrStreamEOF
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// ReadToEnd returns a copy of every byte left in the blob. The result is
// nil when nothing remains.
func (r *Reader) ReadToEnd() []byte {
	if r.pos >= r.end {
		return nil
	}
	out, _ := r.ReadBytes(r.end - r.pos)
	return out
}

// ReadCompressedUint reads an ECMA-335 compressed unsigned integer.
//
// Encoding: the top bits of the first byte select the width.
//
//	0xxxxxxx                            1 byte,  7 bits
//	10xxxxxx xxxxxxxx                   2 bytes, 14 bits
//	110xxxxx xxxxxxxx xxxxxxxx xxxxxxxx 4 bytes, 29 bits
//
// Big-endian within the value. A first byte of 111xxxxx is invalid.
func (r *Reader) ReadCompressedUint() (uint32, error) {
	v, _, err := r.readCompressed()
	return v, err
}

// ReadCompressedInt reads an ECMA-335 compressed signed integer. The value is
// rotated left by one so the sign bit lands in bit 0 of the unsigned form.
func (r *Reader) ReadCompressedInt() (int32, error) {
	u, width, err := r.readCompressed()
	if err != nil {
		return 0, err
	}
	neg := u&1 != 0
	v := int32(u >> 1)
	if neg {
		switch width {
		case 1:
			v -= 0x40
		case 2:
			v -= 0x2000
		default:
			v -= 0x10000000
		}
	}
	return v, nil
}

func (r *Reader) readCompressed() (uint32, int, error) {
	start := r.pos
	b0, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), 1, nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadByte()
		if err != nil {
			r.pos = start
			return 0, 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), 2, nil
	case b0&0xE0 == 0xC0:
		if r.pos+3 > r.end {
			r.pos = start
			return 0, 0, ErrStreamEOF
		}
		v := uint32(b0&0x1F)<<24 |
			uint32(r.data[r.pos])<<16 |
			uint32(r.data[r.pos+1])<<8 |
			uint32(r.data[r.pos+2])
		r.pos += 3
		return v, 4, nil
	default:
		r.pos = start
		return 0, 0, fmt.Errorf("%w: lead byte 0x%02x", ErrBadCompressed, b0)
	}
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.pos+n > r.end {
		return ErrStreamEOF
	}
	r.pos += n
	return nil
}
