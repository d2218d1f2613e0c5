package sig

import (
	"strings"

	"cilmeta/internal/blob"
)

// FieldSignature is the type of a field.
//
// Layout: FIELD Type
type FieldSignature struct {
	Header
	FieldType TypeSignature
}

func NewFieldSignature(t TypeSignature) *FieldSignature {
	return &FieldSignature{Header: Header{attrs: Attributes(KindField)}, FieldType: t}
}

func (f *FieldSignature) String() string { return "field " + typeString(f.FieldType) }

func readFieldSignature(r *blob.Reader, ctx *ReadContext) (*FieldSignature, error) {
	attrs, err := readAttributes(r)
	if err != nil {
		return nil, err
	}
	t, err := readType(r, ctx, 1)
	if err != nil {
		return nil, err
	}
	return &FieldSignature{Header: Header{attrs: attrs}, FieldType: t}, nil
}

func (f *FieldSignature) writeBody(w *blob.Writer, ctx *WriteContext, depth int) error {
	w.WriteByte(f.tag(KindField))
	return writeType(w, ctx, f.FieldType, depth+1)
}

// PropertySignature is the value type and index parameters of a property.
//
// Layout: PROPERTY ParamCount Type Param*
type PropertySignature struct {
	Header
	PropertyType TypeSignature
	Parameters   []TypeSignature
}

func NewPropertySignature(hasThis bool, t TypeSignature, params ...TypeSignature) *PropertySignature {
	attrs := Attributes(KindProperty).With(FlagHasThis, hasThis)
	return &PropertySignature{Header: Header{attrs: attrs}, PropertyType: t, Parameters: params}
}

// SetHasThis sets or clears the instance receiver flag.
func (p *PropertySignature) SetHasThis(on bool) { p.attrs = p.attrs.With(FlagHasThis, on) }

func (p *PropertySignature) String() string {
	var sb strings.Builder
	sb.WriteString("property ")
	if p.HasThis() {
		sb.WriteString("instance ")
	}
	sb.WriteString(typeString(p.PropertyType))
	if len(p.Parameters) > 0 {
		sb.WriteString(" [")
		sb.WriteString(joinTypes(p.Parameters))
		sb.WriteByte(']')
	}
	return sb.String()
}

func readPropertySignature(r *blob.Reader, ctx *ReadContext) (*PropertySignature, error) {
	attrs, err := readAttributes(r)
	if err != nil {
		return nil, err
	}
	p := &PropertySignature{Header: Header{attrs: attrs}}
	off := r.Position()
	n, err := r.ReadCompressedUint()
	if err != nil {
		return nil, blob.Errorf(off, err, "reading parameter count")
	}
	if p.PropertyType, err = readType(r, ctx, 1); err != nil {
		return nil, err
	}
	if int(n) > r.Remaining() {
		return nil, blob.Errorf(off, blob.ErrStreamEOF, "%d parameters with %d bytes left", n, r.Remaining())
	}
	p.Parameters = make([]TypeSignature, 0, n)
	for i := uint32(0); i < n; i++ {
		t, err := readType(r, ctx, 1)
		if err != nil {
			return nil, err
		}
		p.Parameters = append(p.Parameters, t)
	}
	return p, nil
}

func (p *PropertySignature) writeBody(w *blob.Writer, ctx *WriteContext, depth int) error {
	w.WriteByte(p.tag(KindProperty))
	if err := w.WriteCompressedUint(uint32(len(p.Parameters))); err != nil {
		return err
	}
	if err := writeType(w, ctx, p.PropertyType, depth+1); err != nil {
		return err
	}
	for _, t := range p.Parameters {
		if err := writeType(w, ctx, t, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// LocalVariableSignature lists the types of a method body's locals.
//
// Layout: LOCAL_SIG Count Type+
type LocalVariableSignature struct {
	Header
	Variables []TypeSignature
}

func NewLocalVariableSignature(types ...TypeSignature) *LocalVariableSignature {
	return &LocalVariableSignature{Header: Header{attrs: Attributes(KindLocal)}, Variables: types}
}

func (l *LocalVariableSignature) String() string {
	return "locals (" + joinTypes(l.Variables) + ")"
}

func readLocalVariableSignature(r *blob.Reader, ctx *ReadContext) (*LocalVariableSignature, error) {
	attrs, err := readAttributes(r)
	if err != nil {
		return nil, err
	}
	vars, err := readTypeList(r, ctx, 1, "local")
	if err != nil {
		return nil, err
	}
	return &LocalVariableSignature{Header: Header{attrs: attrs}, Variables: vars}, nil
}

func (l *LocalVariableSignature) writeBody(w *blob.Writer, ctx *WriteContext, depth int) error {
	w.WriteByte(l.tag(KindLocal))
	return writeTypeList(w, ctx, l.Variables, depth+1)
}

// GenericInstanceMethodSignature holds the type arguments of a generic
// method instantiation.
//
// Layout: GENERICINST GenArgCount Type+
type GenericInstanceMethodSignature struct {
	Header
	TypeArguments []TypeSignature
}

func NewGenericInstanceMethodSignature(args ...TypeSignature) *GenericInstanceMethodSignature {
	return &GenericInstanceMethodSignature{
		Header:        Header{attrs: Attributes(KindGenericInstance)},
		TypeArguments: args,
	}
}

func (g *GenericInstanceMethodSignature) String() string {
	return "<" + joinTypes(g.TypeArguments) + ">"
}

func readGenericInstanceMethodSignature(r *blob.Reader, ctx *ReadContext) (*GenericInstanceMethodSignature, error) {
	attrs, err := readAttributes(r)
	if err != nil {
		return nil, err
	}
	args, err := readTypeList(r, ctx, 1, "type argument")
	if err != nil {
		return nil, err
	}
	return &GenericInstanceMethodSignature{Header: Header{attrs: attrs}, TypeArguments: args}, nil
}

func (g *GenericInstanceMethodSignature) writeBody(w *blob.Writer, ctx *WriteContext, depth int) error {
	w.WriteByte(g.tag(KindGenericInstance))
	return writeTypeList(w, ctx, g.TypeArguments, depth+1)
}

func joinTypes(types []TypeSignature) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = typeString(t)
	}
	return strings.Join(parts, ", ")
}
