package sig

import (
	"fmt"
	"strings"

	"cilmeta/internal/blob"
)

// MethodSignature describes a method's parameters and return type.
//
// Layout: Attributes [GenParamCount] ParamCount RetType Param*, with a
// single SENTINEL (0x41) before the first var-arg parameter of a call-site
// signature.
type MethodSignature struct {
	Header
	GenericParameterCount uint32
	ReturnType            TypeSignature
	Parameters            []TypeSignature

	sentinel int // index of the first var-arg parameter + 1; 0 = none
}

// NewMethodSignature builds a method signature. attrs must select one of the
// method calling conventions.
func NewMethodSignature(attrs Attributes, ret TypeSignature, params ...TypeSignature) (*MethodSignature, error) {
	if !attrs.IsMethod() {
		return nil, fmt.Errorf("%w: %s is not a method convention", ErrInvalidFlags, attrs.Kind())
	}
	if err := checkFlags(attrs); err != nil {
		return nil, err
	}
	return &MethodSignature{
		Header:     Header{attrs: attrs},
		ReturnType: ret,
		Parameters: params,
	}, nil
}

// SetHasThis sets or clears the instance receiver flag.
func (m *MethodSignature) SetHasThis(on bool) { m.attrs = m.attrs.With(FlagHasThis, on) }

// SetExplicitThis sets or clears the explicit receiver flag.
func (m *MethodSignature) SetExplicitThis(on bool) { m.attrs = m.attrs.With(FlagExplicitThis, on) }

// SetGenericParameterCount sets the generic arity. A zero count clears the
// generic flag.
func (m *MethodSignature) SetGenericParameterCount(n uint32) {
	m.GenericParameterCount = n
	m.attrs = m.attrs.With(FlagGeneric, n > 0)
}

// SetCallingConvention changes the calling convention.
func (m *MethodSignature) SetCallingConvention(k Kind) error {
	if !k.IsMethod() {
		return fmt.Errorf("%w: %s is not a method convention", ErrInvalidFlags, k)
	}
	m.attrs = m.attrs.WithKind(k)
	return nil
}

// IsSentinel reports whether the parameter list has a var-arg tail.
func (m *MethodSignature) IsSentinel() bool { return m.sentinel > 0 }

// SentinelIndex returns the position of the first var-arg parameter, which
// equals the number of fixed parameters.
func (m *MethodSignature) SentinelIndex() (int, bool) {
	return m.sentinel - 1, m.sentinel > 0
}

// SetSentinel marks Parameters[i:] as the var-arg tail.
func (m *MethodSignature) SetSentinel(i int) error {
	if i < 0 || i >= len(m.Parameters) {
		return fmt.Errorf("%w: %d of %d", ErrSentinelOutOfRange, i, len(m.Parameters))
	}
	m.sentinel = i + 1
	return nil
}

// ClearSentinel removes the var-arg marker.
func (m *MethodSignature) ClearSentinel() { m.sentinel = 0 }

// FixedParameters returns the parameters before the sentinel.
func (m *MethodSignature) FixedParameters() []TypeSignature {
	if i, ok := m.SentinelIndex(); ok && i <= len(m.Parameters) {
		return m.Parameters[:i]
	}
	return m.Parameters
}

// VarArgParameters returns the parameters after the sentinel.
func (m *MethodSignature) VarArgParameters() []TypeSignature {
	if i, ok := m.SentinelIndex(); ok && i <= len(m.Parameters) {
		return m.Parameters[i:]
	}
	return nil
}

func (m *MethodSignature) String() string {
	var sb strings.Builder
	sb.WriteString("method ")
	if m.HasThis() {
		sb.WriteString("instance ")
	}
	if m.ExplicitThis() {
		sb.WriteString("explicit ")
	}
	if k := m.Kind(); k != KindDefault {
		sb.WriteString(k.String())
		sb.WriteByte(' ')
	}
	sb.WriteString(typeString(m.ReturnType))
	sb.WriteString(" *")
	if m.IsGeneric() {
		fmt.Fprintf(&sb, "<%d>", m.GenericParameterCount)
	}
	sb.WriteByte('(')
	for i, p := range m.Parameters {
		if i > 0 {
			sb.WriteString(", ")
		}
		if m.sentinel > 0 && i == m.sentinel-1 {
			sb.WriteString("..., ")
		}
		sb.WriteString(typeString(p))
	}
	sb.WriteByte(')')
	return sb.String()
}

func readMethodSignature(r *blob.Reader, ctx *ReadContext, depth int) (*MethodSignature, error) {
	if depth > ctx.Options.EffectiveMaxDepth() {
		return nil, blob.Errorf(r.Position(), ErrDepthExceeded, "limit %d", ctx.Options.EffectiveMaxDepth())
	}
	attrs, err := readAttributes(r)
	if err != nil {
		return nil, err
	}
	m := &MethodSignature{Header: Header{attrs: attrs}}

	if attrs.IsGeneric() {
		off := r.Position()
		if m.GenericParameterCount, err = r.ReadCompressedUint(); err != nil {
			return nil, blob.Errorf(off, err, "reading generic parameter count")
		}
	}

	off := r.Position()
	n, err := r.ReadCompressedUint()
	if err != nil {
		return nil, blob.Errorf(off, err, "reading parameter count")
	}

	if m.ReturnType, err = readType(r, ctx, depth+1); err != nil {
		return nil, err
	}

	if int(n) > r.Remaining() {
		return nil, blob.Errorf(off, blob.ErrStreamEOF, "%d parameters with %d bytes left", n, r.Remaining())
	}
	m.Parameters = make([]TypeSignature, 0, n)
	for i := uint32(0); i < n; i++ {
		b, err := r.PeekByte()
		if err != nil {
			return nil, blob.Errorf(r.Position(), err, "reading parameter %d", i)
		}
		if ElementType(b) == ElementSentinel && m.sentinel == 0 {
			r.ReadByte()
			m.sentinel = int(i) + 1
		}
		p, err := readType(r, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		m.Parameters = append(m.Parameters, p)
	}
	return m, nil
}

func (m *MethodSignature) writeBody(w *blob.Writer, ctx *WriteContext, depth int) error {
	if !m.attrs.IsMethod() {
		return fmt.Errorf("%w: %s is not a method convention", ErrInvalidFlags, m.Kind())
	}
	if m.sentinel > len(m.Parameters) {
		return fmt.Errorf("%w: %d of %d", ErrSentinelOutOfRange, m.sentinel-1, len(m.Parameters))
	}
	if m.GenericParameterCount != 0 && !m.IsGeneric() {
		return fmt.Errorf("%w: %d generic parameters without the generic flag", ErrInvalidFlags, m.GenericParameterCount)
	}
	w.WriteByte(byte(m.attrs))
	if m.IsGeneric() {
		if err := w.WriteCompressedUint(m.GenericParameterCount); err != nil {
			return err
		}
	}
	if err := w.WriteCompressedUint(uint32(len(m.Parameters))); err != nil {
		return err
	}
	if err := writeType(w, ctx, m.ReturnType, depth+1); err != nil {
		return err
	}
	for i, p := range m.Parameters {
		if m.sentinel > 0 && i == m.sentinel-1 {
			w.WriteByte(byte(ElementSentinel))
		}
		if err := writeType(w, ctx, p, depth+1); err != nil {
			return err
		}
	}
	return nil
}
