// Package sig decodes and encodes ECMA-335 signature blobs.
//
// A blob starts with an Attributes byte whose low nibble picks the grammar:
//
//	0x0-0x5  method (default, C, stdcall, thiscall, fastcall, vararg)
//	0x6      field
//	0x7      local variables
//	0x8      property
//	0xA      generic method instantiation
//
// Anything after the recognised content is kept verbatim as trailing data
// and written back unchanged, so blobs produced by newer tools survive an
// unmodified round trip.
package sig

import (
	"cilmeta/internal/blob"
)

// CallingConvention is a decoded signature blob. The implementations are
// *MethodSignature, *FieldSignature, *PropertySignature,
// *LocalVariableSignature and *GenericInstanceMethodSignature.
type CallingConvention interface {
	Attributes() Attributes
	TrailingData() []byte
	SetTrailingData([]byte)
	String() string

	header() *Header
	writeBody(w *blob.Writer, ctx *WriteContext, depth int) error
}

// Header is the state every signature variant shares.
type Header struct {
	attrs    Attributes
	trailing []byte
}

func (h *Header) header() *Header { return h }

// Attributes returns the leading byte as it will be written.
func (h *Header) Attributes() Attributes { return h.attrs }

func (h *Header) Kind() Kind         { return h.attrs.Kind() }
func (h *Header) HasThis() bool      { return h.attrs.HasThis() }
func (h *Header) ExplicitThis() bool { return h.attrs.ExplicitThis() }
func (h *Header) IsGeneric() bool    { return h.attrs.IsGeneric() }

// TrailingData returns the bytes that followed the recognised content.
func (h *Header) TrailingData() []byte { return h.trailing }

// SetTrailingData replaces the bytes appended after the recognised content.
func (h *Header) SetTrailingData(b []byte) { h.trailing = b }

// tag builds the leading byte for a variant of fixed kind k, keeping every
// flag bit the instance carries.
func (h *Header) tag(k Kind) byte { return byte(h.attrs.WithKind(k)) }

// ReadCallingConvention decodes the signature at the reader's position. The
// leading byte is peeked, not consumed: each variant reads it again as the
// first field of its own layout. With readToEnd set, every byte left in the
// blob becomes trailing data.
func ReadCallingConvention(r *blob.Reader, ctx *ReadContext, readToEnd bool) (CallingConvention, error) {
	start := r.Position()
	flag, err := r.PeekByte()
	if err != nil {
		return nil, blob.Errorf(start, err, "reading calling convention")
	}

	var s CallingConvention
	switch k := Attributes(flag).Kind(); {
	// An ExplicitThis byte with no other bits masks to KindDefault and
	// lands here as a method.
	case k.IsMethod():
		s, err = readMethodSignature(r, ctx, 0)
	case k == KindProperty:
		s, err = readPropertySignature(r, ctx)
	case k == KindLocal:
		s, err = readLocalVariableSignature(r, ctx)
	case k == KindGenericInstance:
		s, err = readGenericInstanceMethodSignature(r, ctx)
	case k == KindField:
		s, err = readFieldSignature(r, ctx)
	default:
		return nil, blob.Errorf(start, ErrUnsupportedKind, "leading byte 0x%02x (%s)", flag, k)
	}
	if err != nil {
		r.SetPosition(start)
		return nil, err
	}

	if readToEnd {
		s.header().trailing = r.ReadToEnd()
	}
	return s, nil
}

// WriteCallingConvention encodes s followed by its trailing data.
func WriteCallingConvention(w *blob.Writer, ctx *WriteContext, s CallingConvention) error {
	if err := s.writeBody(w, ctx, 0); err != nil {
		return err
	}
	w.WriteBytes(s.TrailingData())
	return nil
}

// Decode decodes a whole blob, keeping any unrecognised tail.
func Decode(data []byte, ctx *ReadContext) (CallingConvention, error) {
	return ReadCallingConvention(blob.NewReader(data), ctx, true)
}

// Encode encodes s into a new blob.
func Encode(s CallingConvention, ctx *WriteContext) ([]byte, error) {
	w := blob.NewWriter()
	if err := WriteCallingConvention(w, ctx, s); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func readAttributes(r *blob.Reader) (Attributes, error) {
	off := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return 0, blob.Errorf(off, err, "reading attributes")
	}
	return Attributes(b), nil
}
