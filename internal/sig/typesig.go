package sig

import (
	"fmt"
	"strconv"
	"strings"

	"cilmeta/internal/blob"
	"cilmeta/internal/metadata"
)

// TypeSignature is one type inside a blob. The set of implementations is
// closed; see Walk for the full list.
type TypeSignature interface {
	ElementType() ElementType
	String() string
	write(w *blob.Writer, ctx *WriteContext, depth int) error
}

// CorLibType is a primitive that is fully described by its element type.
type CorLibType struct {
	Type ElementType
}

func (t *CorLibType) ElementType() ElementType { return t.Type }
func (t *CorLibType) String() string           { return t.Type.String() }

func (t *CorLibType) write(w *blob.Writer, _ *WriteContext, _ int) error {
	if !t.Type.IsCorLib() {
		return fmt.Errorf("%w: %s is not a primitive", ErrUnexpectedElement, t.Type)
	}
	return w.WriteByte(byte(t.Type))
}

// TypeDefOrRefType is a CLASS or VALUETYPE reference to a named type.
type TypeDefOrRefType struct {
	Type      metadata.TypeDescriptor
	ValueType bool
}

func (t *TypeDefOrRefType) ElementType() ElementType {
	if t.ValueType {
		return ElementValueType
	}
	return ElementClass
}

func (t *TypeDefOrRefType) String() string { return typeName(t.Type) }

func (t *TypeDefOrRefType) write(w *blob.Writer, ctx *WriteContext, _ int) error {
	w.WriteByte(byte(t.ElementType()))
	return writeTypeDefOrRef(w, ctx, t.Type)
}

// DerivedType wraps a single base type: Ptr, ByRef, SzArray or Pinned.
type DerivedType struct {
	Element ElementType
	Base    TypeSignature
}

func PointerTo(base TypeSignature) *DerivedType { return &DerivedType{ElementPtr, base} }
func ByRefTo(base TypeSignature) *DerivedType   { return &DerivedType{ElementByRef, base} }
func SzArrayOf(base TypeSignature) *DerivedType { return &DerivedType{ElementSzArray, base} }
func PinnedOf(base TypeSignature) *DerivedType  { return &DerivedType{ElementPinned, base} }

func (t *DerivedType) ElementType() ElementType { return t.Element }

func (t *DerivedType) String() string {
	base := typeString(t.Base)
	switch t.Element {
	case ElementPtr:
		return base + "*"
	case ElementByRef:
		return base + "&"
	case ElementSzArray:
		return base + "[]"
	case ElementPinned:
		return base + " pinned"
	}
	return t.Element.String() + " " + base
}

func (t *DerivedType) write(w *blob.Writer, ctx *WriteContext, depth int) error {
	switch t.Element {
	case ElementPtr, ElementByRef, ElementSzArray, ElementPinned:
	default:
		return fmt.Errorf("%w: %s cannot wrap a type", ErrUnexpectedElement, t.Element)
	}
	w.WriteByte(byte(t.Element))
	return writeType(w, ctx, t.Base, depth+1)
}

// CustomModifierType is a modreq/modopt annotation on its base type.
type CustomModifierType struct {
	Required bool
	Modifier metadata.TypeDescriptor
	Base     TypeSignature
}

func (t *CustomModifierType) ElementType() ElementType {
	if t.Required {
		return ElementCModReqd
	}
	return ElementCModOpt
}

func (t *CustomModifierType) String() string {
	return fmt.Sprintf("%s %s(%s)", typeString(t.Base), t.ElementType(), typeName(t.Modifier))
}

func (t *CustomModifierType) write(w *blob.Writer, ctx *WriteContext, depth int) error {
	w.WriteByte(byte(t.ElementType()))
	if err := writeTypeDefOrRef(w, ctx, t.Modifier); err != nil {
		return err
	}
	return writeType(w, ctx, t.Base, depth+1)
}

// GenericParameterType refers to a generic parameter by position: !n for
// the declaring type, !!n for the method.
type GenericParameterType struct {
	Method bool
	Index  uint32
}

func (t *GenericParameterType) ElementType() ElementType {
	if t.Method {
		return ElementMVar
	}
	return ElementVar
}

func (t *GenericParameterType) String() string {
	if t.Method {
		return "!!" + strconv.FormatUint(uint64(t.Index), 10)
	}
	return "!" + strconv.FormatUint(uint64(t.Index), 10)
}

func (t *GenericParameterType) write(w *blob.Writer, _ *WriteContext, _ int) error {
	w.WriteByte(byte(t.ElementType()))
	return w.WriteCompressedUint(t.Index)
}

// ArrayType is a general array with an explicit shape.
//
// Layout: ARRAY Type Rank NumSizes Size* NumLoBounds LoBound*
type ArrayType struct {
	Base        TypeSignature
	Rank        uint32
	Sizes       []uint32
	LowerBounds []int32
}

func (t *ArrayType) ElementType() ElementType { return ElementArray }

func (t *ArrayType) String() string {
	n := len(t.Sizes)
	if len(t.LowerBounds) > n {
		n = len(t.LowerBounds)
	}
	if uint32(n) > t.Rank {
		n = int(t.Rank)
	}
	dims := make([]string, n, n+1)
	for i := range dims {
		hasLo := i < len(t.LowerBounds)
		hasSize := i < len(t.Sizes)
		switch {
		case hasLo && hasSize:
			lo := int64(t.LowerBounds[i])
			dims[i] = strconv.FormatInt(lo, 10) + "..." + strconv.FormatInt(lo+int64(t.Sizes[i])-1, 10)
		case hasLo:
			dims[i] = strconv.FormatInt(int64(t.LowerBounds[i]), 10) + "..."
		case hasSize:
			dims[i] = strconv.FormatUint(uint64(t.Sizes[i]), 10)
		}
	}
	// Dimensions without size or bound are summarised past the first few.
	rest := t.Rank - uint32(n)
	switch {
	case rest == 0:
	case rest <= 4:
		for ; rest > 0; rest-- {
			dims = append(dims, "")
		}
	default:
		dims = append(dims, fmt.Sprintf("+%d dims", rest))
	}
	return typeString(t.Base) + "[" + strings.Join(dims, ",") + "]"
}

func (t *ArrayType) write(w *blob.Writer, ctx *WriteContext, depth int) error {
	if uint32(len(t.Sizes)) > t.Rank || uint32(len(t.LowerBounds)) > t.Rank {
		return fmt.Errorf("%w: %d sizes and %d lower bounds for rank %d", ErrBadArrayShape, len(t.Sizes), len(t.LowerBounds), t.Rank)
	}
	w.WriteByte(byte(ElementArray))
	if err := writeType(w, ctx, t.Base, depth+1); err != nil {
		return err
	}
	if err := w.WriteCompressedUint(t.Rank); err != nil {
		return err
	}
	if err := w.WriteCompressedUint(uint32(len(t.Sizes))); err != nil {
		return err
	}
	for _, s := range t.Sizes {
		if err := w.WriteCompressedUint(s); err != nil {
			return err
		}
	}
	if err := w.WriteCompressedUint(uint32(len(t.LowerBounds))); err != nil {
		return err
	}
	for _, lo := range t.LowerBounds {
		if err := w.WriteCompressedInt(lo); err != nil {
			return err
		}
	}
	return nil
}

// GenericInstanceType is a generic type applied to type arguments.
//
// Layout: GENERICINST (CLASS | VALUETYPE) TypeDefOrRef GenArgCount Type*
type GenericInstanceType struct {
	Generic   metadata.TypeDescriptor
	ValueType bool
	Arguments []TypeSignature
}

func (t *GenericInstanceType) ElementType() ElementType { return ElementGenericInst }

func (t *GenericInstanceType) String() string {
	args := make([]string, len(t.Arguments))
	for i, a := range t.Arguments {
		args[i] = typeString(a)
	}
	return typeName(t.Generic) + "<" + strings.Join(args, ", ") + ">"
}

func (t *GenericInstanceType) write(w *blob.Writer, ctx *WriteContext, depth int) error {
	w.WriteByte(byte(ElementGenericInst))
	if t.ValueType {
		w.WriteByte(byte(ElementValueType))
	} else {
		w.WriteByte(byte(ElementClass))
	}
	if err := writeTypeDefOrRef(w, ctx, t.Generic); err != nil {
		return err
	}
	return writeTypeList(w, ctx, t.Arguments, depth+1)
}

// FunctionPointerType embeds a full method signature.
type FunctionPointerType struct {
	Signature *MethodSignature
}

func (t *FunctionPointerType) ElementType() ElementType { return ElementFnPtr }

func (t *FunctionPointerType) String() string {
	if t.Signature == nil {
		return "method <nil>"
	}
	return t.Signature.String()
}

func (t *FunctionPointerType) write(w *blob.Writer, ctx *WriteContext, depth int) error {
	if t.Signature == nil {
		return ErrNilType
	}
	w.WriteByte(byte(ElementFnPtr))
	return t.Signature.writeBody(w, ctx, depth+1)
}

func typeString(t TypeSignature) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func typeName(td metadata.TypeDescriptor) string {
	if td == nil {
		return "<nil>"
	}
	if name := td.FullName(); name != "" {
		return name
	}
	return td.Token().String()
}

// ReadTypeSignature decodes one type at the reader's position.
func ReadTypeSignature(r *blob.Reader, ctx *ReadContext) (TypeSignature, error) {
	return readType(r, ctx, 0)
}

func readType(r *blob.Reader, ctx *ReadContext, depth int) (TypeSignature, error) {
	start := r.Position()
	if depth > ctx.Options.EffectiveMaxDepth() {
		return nil, blob.Errorf(start, ErrDepthExceeded, "limit %d", ctx.Options.EffectiveMaxDepth())
	}
	b, err := r.ReadByte()
	if err != nil {
		return nil, blob.Errorf(start, err, "reading element type")
	}
	et := ElementType(b)
	if et.IsCorLib() {
		return &CorLibType{Type: et}, nil
	}

	switch et {
	case ElementPtr, ElementByRef, ElementSzArray, ElementPinned:
		base, err := readType(r, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return &DerivedType{Element: et, Base: base}, nil

	case ElementClass, ElementValueType:
		td, err := readTypeDefOrRef(r, ctx)
		if err != nil {
			return nil, err
		}
		return &TypeDefOrRefType{Type: td, ValueType: et == ElementValueType}, nil

	case ElementCModReqd, ElementCModOpt:
		mod, err := readTypeDefOrRef(r, ctx)
		if err != nil {
			return nil, err
		}
		base, err := readType(r, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return &CustomModifierType{Required: et == ElementCModReqd, Modifier: mod, Base: base}, nil

	case ElementVar, ElementMVar:
		off := r.Position()
		idx, err := r.ReadCompressedUint()
		if err != nil {
			return nil, blob.Errorf(off, err, "reading generic parameter index")
		}
		return &GenericParameterType{Method: et == ElementMVar, Index: idx}, nil

	case ElementArray:
		return readArray(r, ctx, depth)

	case ElementGenericInst:
		return readGenericInstance(r, ctx, depth)

	case ElementFnPtr:
		m, err := readMethodSignature(r, ctx, depth+1)
		if err != nil {
			return nil, err
		}
		return &FunctionPointerType{Signature: m}, nil
	}

	return nil, blob.Errorf(start, ErrUnexpectedElement, "%s", et)
}

func readArray(r *blob.Reader, ctx *ReadContext, depth int) (TypeSignature, error) {
	base, err := readType(r, ctx, depth+1)
	if err != nil {
		return nil, err
	}
	t := &ArrayType{Base: base}
	off := r.Position()
	if t.Rank, err = r.ReadCompressedUint(); err != nil {
		return nil, blob.Errorf(off, err, "reading array rank")
	}
	off = r.Position()
	n, err := r.ReadCompressedUint()
	if err != nil {
		return nil, blob.Errorf(off, err, "reading array size count")
	}
	if n > t.Rank {
		return nil, blob.Errorf(off, ErrBadArrayShape, "%d sizes for rank %d", n, t.Rank)
	}
	if int(n) > r.Remaining() {
		return nil, blob.Errorf(off, blob.ErrStreamEOF, "%d sizes with %d bytes left", n, r.Remaining())
	}
	for i := uint32(0); i < n; i++ {
		off = r.Position()
		s, err := r.ReadCompressedUint()
		if err != nil {
			return nil, blob.Errorf(off, err, "reading array size %d", i)
		}
		t.Sizes = append(t.Sizes, s)
	}
	off = r.Position()
	n, err = r.ReadCompressedUint()
	if err != nil {
		return nil, blob.Errorf(off, err, "reading array bound count")
	}
	if n > t.Rank {
		return nil, blob.Errorf(off, ErrBadArrayShape, "%d lower bounds for rank %d", n, t.Rank)
	}
	if int(n) > r.Remaining() {
		return nil, blob.Errorf(off, blob.ErrStreamEOF, "%d bounds with %d bytes left", n, r.Remaining())
	}
	for i := uint32(0); i < n; i++ {
		off = r.Position()
		lo, err := r.ReadCompressedInt()
		if err != nil {
			return nil, blob.Errorf(off, err, "reading array lower bound %d", i)
		}
		t.LowerBounds = append(t.LowerBounds, lo)
	}
	return t, nil
}

func readGenericInstance(r *blob.Reader, ctx *ReadContext, depth int) (TypeSignature, error) {
	off := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return nil, blob.Errorf(off, err, "reading generic instance kind")
	}
	switch ElementType(b) {
	case ElementClass, ElementValueType:
	default:
		return nil, blob.Errorf(off, ErrUnexpectedElement, "generic instance of %s", ElementType(b))
	}
	td, err := readTypeDefOrRef(r, ctx)
	if err != nil {
		return nil, err
	}
	args, err := readTypeList(r, ctx, depth+1, "generic argument")
	if err != nil {
		return nil, err
	}
	return &GenericInstanceType{Generic: td, ValueType: ElementType(b) == ElementValueType, Arguments: args}, nil
}

// readTypeList reads a compressed count followed by that many types.
func readTypeList(r *blob.Reader, ctx *ReadContext, depth int, what string) ([]TypeSignature, error) {
	off := r.Position()
	n, err := r.ReadCompressedUint()
	if err != nil {
		return nil, blob.Errorf(off, err, "reading %s count", what)
	}
	// Each type takes at least one byte.
	if int(n) > r.Remaining() {
		return nil, blob.Errorf(off, blob.ErrStreamEOF, "%d %ss with %d bytes left", n, what, r.Remaining())
	}
	out := make([]TypeSignature, 0, n)
	for i := uint32(0); i < n; i++ {
		t, err := readType(r, ctx, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func writeTypeList(w *blob.Writer, ctx *WriteContext, types []TypeSignature, depth int) error {
	if err := w.WriteCompressedUint(uint32(len(types))); err != nil {
		return err
	}
	for _, t := range types {
		if err := writeType(w, ctx, t, depth); err != nil {
			return err
		}
	}
	return nil
}

// WriteTypeSignature encodes t.
func WriteTypeSignature(w *blob.Writer, ctx *WriteContext, t TypeSignature) error {
	return writeType(w, ctx, t, 0)
}

func writeType(w *blob.Writer, ctx *WriteContext, t TypeSignature, depth int) error {
	if t == nil {
		return ErrNilType
	}
	if depth > ctx.Options.EffectiveMaxDepth() {
		return fmt.Errorf("%w: limit %d", ErrDepthExceeded, ctx.Options.EffectiveMaxDepth())
	}
	return t.write(w, ctx, depth)
}

// TypeDefOrRef coded index tags (ECMA-335 II.24.2.6).
var typeDefOrRefTables = [3]metadata.TableIndex{
	metadata.TableTypeDef,
	metadata.TableTypeRef,
	metadata.TableTypeSpec,
}

func readTypeDefOrRef(r *blob.Reader, ctx *ReadContext) (metadata.TypeDescriptor, error) {
	off := r.Position()
	v, err := r.ReadCompressedUint()
	if err != nil {
		return nil, blob.Errorf(off, err, "reading TypeDefOrRef index")
	}
	tag := v & 3
	if tag == 3 {
		return nil, blob.Errorf(off, ErrBadCodedIndex, "tag 3 in 0x%x", v)
	}
	if v>>2 > metadata.MaxRID {
		return nil, blob.Errorf(off, ErrBadCodedIndex, "row 0x%x exceeds 24 bits", v>>2)
	}
	tok := metadata.NewToken(typeDefOrRefTables[tag], v>>2)
	if tok.IsNull() {
		return nil, blob.Errorf(off, ErrBadCodedIndex, "null %s reference", tok.Table())
	}
	if ctx.Resolver == nil {
		return nil, fmt.Errorf("sig: offset 0x%x: resolving %s: %w", off, tok, ErrNoResolver)
	}
	td, err := ctx.Resolver.ResolveType(tok)
	if err != nil {
		return nil, fmt.Errorf("sig: offset 0x%x: resolving %s: %w", off, tok, err)
	}
	return td, nil
}

func writeTypeDefOrRef(w *blob.Writer, ctx *WriteContext, td metadata.TypeDescriptor) error {
	if td == nil {
		return fmt.Errorf("%w: nil type reference", ErrBadCodedIndex)
	}
	if ctx.Tokens == nil {
		return ErrNoTokens
	}
	tok, err := ctx.Tokens.TokenFor(td)
	if err != nil {
		return fmt.Errorf("sig: token for %s: %w", typeName(td), err)
	}
	var tag uint32
	switch tok.Table() {
	case metadata.TableTypeDef:
		tag = 0
	case metadata.TableTypeRef:
		tag = 1
	case metadata.TableTypeSpec:
		tag = 2
	default:
		return fmt.Errorf("%w: %s is not a type token", ErrBadCodedIndex, tok)
	}
	return w.WriteCompressedUint(tok.RID()<<2 | tag)
}
