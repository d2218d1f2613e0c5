package sig

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cilmeta/internal/blob"
	"cilmeta/internal/metadata"
)

// Coded TypeDefOrRef indexes for the fixture arena.
const (
	codedList     = 0x05 // TypeRef 1
	codedVolatile = 0x09 // TypeRef 2
	codedPoint    = 0x08 // TypeDef 2
	codedSpec     = 0x06 // TypeSpec 1
)

func testArena(t *testing.T) *metadata.Arena {
	t.Helper()
	a := metadata.NewArena()
	adds := []struct {
		tok  metadata.Token
		info metadata.DefinitionInfo
	}{
		{metadata.NewToken(metadata.TableTypeRef, 1), metadata.DefinitionInfo{Namespace: "System.Collections.Generic", Name: "List`1"}},
		{metadata.NewToken(metadata.TableTypeRef, 2), metadata.DefinitionInfo{Namespace: "System.Runtime.CompilerServices", Name: "IsVolatile"}},
		{metadata.NewToken(metadata.TableTypeDef, 1), metadata.DefinitionInfo{Name: "<Module>"}},
		{metadata.NewToken(metadata.TableTypeDef, 2), metadata.DefinitionInfo{Namespace: "App", Name: "Point", ValueType: true}},
		{metadata.NewToken(metadata.TableTypeSpec, 1), metadata.DefinitionInfo{}},
	}
	for _, d := range adds {
		_, err := a.Add(d.tok, d.info)
		require.NoError(t, err)
	}
	return a
}

func readCtx(a *metadata.Arena) *ReadContext {
	return &ReadContext{Resolver: a}
}

func writeCtx() *WriteContext {
	return &WriteContext{Tokens: metadata.OriginalTokens{}}
}

func TestRoundTrip(t *testing.T) {
	a := testArena(t)
	tests := []struct {
		name string
		in   []byte
		kind Kind
		str  string
	}{
		{"field int32", []byte{0x06, 0x08}, KindField, "field int32"},
		{"field trailing", []byte{0x06, 0x08, 0xDE, 0xAD}, KindField, "field int32"},
		{"field valuetype", []byte{0x06, 0x11, codedPoint}, KindField, "field App.Point"},
		{"field modreq", []byte{0x06, 0x1F, codedVolatile, 0x08}, KindField, "field int32 modreq(System.Runtime.CompilerServices.IsVolatile)"},
		{"field void ptr", []byte{0x06, 0x0F, 0x01}, KindField, "field void*"},
		{"field type var", []byte{0x06, 0x13, 0x00}, KindField, "field !0"},
		{"field typespec", []byte{0x06, 0x12, codedSpec}, KindField, "field TypeSpec[0x1b000001]"},
		{"field high bit kept", []byte{0x86, 0x08}, KindField, "field int32"},
		{"field array bounds", []byte{0x06, 0x14, 0x08, 0x02, 0x00, 0x02, 0x00, 0x00}, KindField, "field int32[0...,0...]"},
		{"field array sized", []byte{0x06, 0x14, 0x08, 0x02, 0x02, 0x03, 0x04, 0x01, 0x7B}, KindField, "field int32[-3...-1,4]"},
		{"field fnptr", []byte{0x06, 0x1B, 0x00, 0x01, 0x08, 0x0E}, KindField, "field method int32 *(string)"},
		{"static main", []byte{0x00, 0x01, 0x01, 0x1D, 0x0E}, KindDefault, "method void *(string[])"},
		{"explicit this", []byte{0x60, 0x00, 0x01}, KindDefault, "method instance explicit void *()"},
		{"generic instance method", []byte{0x30, 0x01, 0x02, 0x1E, 0x00, 0x08, 0x15, 0x12, codedList, 0x01, 0x1E, 0x00}, KindDefault,
			"method instance !!0 *<1>(int32, System.Collections.Generic.List`1<!!0>)"},
		{"vararg call site", []byte{0x05, 0x03, 0x01, 0x08, 0x41, 0x0E, 0x0C}, KindVarArg, "method vararg void *(int32, ..., string, float32)"},
		{"indexer", []byte{0x28, 0x01, 0x08, 0x08}, KindProperty, "property instance int32 [int32]"},
		{"locals", []byte{0x07, 0x03, 0x08, 0x1D, 0x0E, 0x45, 0x10, 0x08}, KindLocal, "locals (int32, string[], int32& pinned)"},
		{"method spec", []byte{0x0A, 0x02, 0x08, 0x0E}, KindGenericInstance, "<int32, string>"},
		{"method spec trailing", []byte{0x0A, 0x01, 0x11, codedPoint, 0x00, 0x01}, KindGenericInstance, "<App.Point>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Decode(tt.in, readCtx(a))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, s.Attributes().Kind())
			assert.Equal(t, tt.str, s.String())

			out, err := Encode(s, writeCtx())
			require.NoError(t, err)
			assert.Equal(t, tt.in, out, "encoded % x", out)

			again, err := Decode(out, readCtx(a))
			require.NoError(t, err)
			assert.Equal(t, s.String(), again.String())
			assert.Equal(t, s.TrailingData(), again.TrailingData())
		})
	}
}

func TestFieldSignature_Int32(t *testing.T) {
	s, err := Decode([]byte{0x06, 0x08}, readCtx(metadata.NewArena()))
	require.NoError(t, err)
	f, ok := s.(*FieldSignature)
	require.True(t, ok, "decoded %T", s)
	assert.Equal(t, &CorLibType{Type: ElementI4}, f.FieldType)
	assert.Empty(t, f.TrailingData())
}

func TestGenericInstanceMethodSignature_TwoArgs(t *testing.T) {
	s, err := Decode([]byte{0x0A, 0x02, 0x0E, 0x08}, readCtx(metadata.NewArena()))
	require.NoError(t, err)
	g, ok := s.(*GenericInstanceMethodSignature)
	require.True(t, ok, "decoded %T", s)
	require.Len(t, g.TypeArguments, 2)
	assert.Equal(t, ElementString, g.TypeArguments[0].ElementType())
	assert.Equal(t, ElementI4, g.TypeArguments[1].ElementType())
}

func TestMethodSignature_GenericLayout(t *testing.T) {
	a := testArena(t)
	in := []byte{0x30, 0x01, 0x02, 0x1E, 0x00, 0x08, 0x15, 0x12, codedList, 0x01, 0x1E, 0x00}
	s, err := Decode(in, readCtx(a))
	require.NoError(t, err)
	m := s.(*MethodSignature)

	assert.True(t, m.HasThis())
	assert.True(t, m.IsGeneric())
	assert.EqualValues(t, 1, m.GenericParameterCount)
	assert.Equal(t, "!!0", m.ReturnType.String())
	require.Len(t, m.Parameters, 2)
	inst, ok := m.Parameters[1].(*GenericInstanceType)
	require.True(t, ok)
	assert.Equal(t, "System.Collections.Generic.List`1", inst.Generic.FullName())
	assert.False(t, inst.ValueType)
	assert.Equal(t, "method instance !!0 *<1>(int32, System.Collections.Generic.List`1<!!0>)", m.String())
}

func TestMethodSignature_Sentinel(t *testing.T) {
	i4 := &CorLibType{Type: ElementI4}
	str := &CorLibType{Type: ElementString}
	r8 := &CorLibType{Type: ElementR8}
	void := &CorLibType{Type: ElementVoid}

	for fixed := 0; fixed < 3; fixed++ {
		params := []TypeSignature{i4, str, r8}
		m, err := NewMethodSignature(Attributes(KindVarArg), void, params...)
		require.NoError(t, err)
		require.NoError(t, m.SetSentinel(fixed))

		out, err := Encode(m, writeCtx())
		require.NoError(t, err)
		assert.Equal(t, byte(ElementSentinel), out[3+fixed], "sentinel byte in % x", out)

		s, err := Decode(out, readCtx(metadata.NewArena()))
		require.NoError(t, err)
		got := s.(*MethodSignature)
		idx, ok := got.SentinelIndex()
		require.True(t, ok)
		assert.Equal(t, fixed, idx)
		assert.True(t, got.IsSentinel())
		assert.Len(t, got.FixedParameters(), fixed)
		assert.Len(t, got.VarArgParameters(), 3-fixed)
		require.Len(t, got.Parameters, 3)
		assert.Equal(t, ElementI4, got.Parameters[0].ElementType())
		assert.Equal(t, ElementString, got.Parameters[1].ElementType())
		assert.Equal(t, ElementR8, got.Parameters[2].ElementType())
	}
}

func TestMethodSignature_SentinelRange(t *testing.T) {
	m, err := NewMethodSignature(Attributes(KindVarArg), &CorLibType{Type: ElementVoid}, &CorLibType{Type: ElementI4})
	require.NoError(t, err)
	assert.ErrorIs(t, m.SetSentinel(1), ErrSentinelOutOfRange)
	assert.ErrorIs(t, m.SetSentinel(-1), ErrSentinelOutOfRange)
	assert.False(t, m.IsSentinel())

	require.NoError(t, m.SetSentinel(0))
	m.Parameters = nil
	_, err = Encode(m, writeCtx())
	assert.ErrorIs(t, err, ErrSentinelOutOfRange)

	m.ClearSentinel()
	assert.Nil(t, m.VarArgParameters())
}

func TestNewMethodSignature_Flags(t *testing.T) {
	void := &CorLibType{Type: ElementVoid}
	_, err := NewMethodSignature(Attributes(KindField), void)
	assert.ErrorIs(t, err, ErrInvalidFlags)
	_, err = NewMethodSignature(Attributes(KindDefault)|0x80, void)
	assert.ErrorIs(t, err, ErrInvalidFlags)

	m, err := NewMethodSignature(Attributes(KindDefault)|FlagHasThis, void)
	require.NoError(t, err)
	m.SetGenericParameterCount(2)
	m.SetExplicitThis(true)
	out, err := Encode(m, writeCtx())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x70, 0x02, 0x00, 0x01}, out)

	m.SetGenericParameterCount(0)
	m.SetHasThis(false)
	m.SetExplicitThis(false)
	require.NoError(t, m.SetCallingConvention(KindC))
	out, err = Encode(m, writeCtx())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00, 0x01}, out)
	assert.ErrorIs(t, m.SetCallingConvention(KindLocal), ErrInvalidFlags)

	m.GenericParameterCount = 3
	_, err = Encode(m, writeCtx())
	assert.ErrorIs(t, err, ErrInvalidFlags)
}

func TestConstructedVariants(t *testing.T) {
	a := testArena(t)
	point, _ := a.ByToken(metadata.NewToken(metadata.TableTypeDef, 2))
	i4 := &CorLibType{Type: ElementI4}

	tests := []struct {
		name string
		sig  CallingConvention
		want []byte
	}{
		{"field", NewFieldSignature(SzArrayOf(i4)), []byte{0x06, 0x1D, 0x08}},
		{"property", NewPropertySignature(true, &TypeDefOrRefType{Type: point, ValueType: true}, i4), []byte{0x28, 0x01, 0x11, codedPoint, 0x08}},
		{"static property", NewPropertySignature(false, i4), []byte{0x08, 0x00, 0x08}},
		{"locals", NewLocalVariableSignature(PinnedOf(ByRefTo(i4)), PointerTo(i4)), []byte{0x07, 0x02, 0x45, 0x10, 0x08, 0x0F, 0x08}},
		{"method spec", NewGenericInstanceMethodSignature(&GenericParameterType{Method: true, Index: 3}), []byte{0x0A, 0x01, 0x1E, 0x03}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Encode(tt.sig, writeCtx())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	p := NewPropertySignature(false, i4)
	p.SetHasThis(true)
	assert.True(t, p.HasThis())
	assert.Equal(t, KindProperty, p.Kind())
}

func TestTrailingDataReplaced(t *testing.T) {
	s, err := Decode([]byte{0x06, 0x08, 0x01, 0x02}, readCtx(metadata.NewArena()))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, s.TrailingData())

	s.SetTrailingData([]byte{0xFF})
	out, err := Encode(s, writeCtx())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x06, 0x08, 0xFF}, out)
}

func TestReadCallingConvention_NotToEnd(t *testing.T) {
	r := blob.NewReader([]byte{0x06, 0x08, 0x06, 0x0E})
	ctx := readCtx(metadata.NewArena())

	first, err := ReadCallingConvention(r, ctx, false)
	require.NoError(t, err)
	assert.Empty(t, first.TrailingData())
	assert.Equal(t, 2, r.Position())

	second, err := ReadCallingConvention(r, ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "field string", second.String())
}

func TestDecodeErrors(t *testing.T) {
	a := testArena(t)
	tests := []struct {
		name   string
		in     []byte
		want   error
		offset int
	}{
		{"empty", nil, blob.ErrStreamEOF, 0},
		{"kind 9", []byte{0x09, 0x00, 0x01}, ErrUnsupportedKind, 0},
		{"kind B", []byte{0x0B}, ErrUnsupportedKind, 0},
		{"kind F with flags", []byte{0x3F}, ErrUnsupportedKind, 0},
		{"truncated field", []byte{0x06}, blob.ErrStreamEOF, 1},
		{"bad compressed count", []byte{0x07, 0xE0}, blob.ErrBadCompressed, 1},
		{"count exceeds blob", []byte{0x07, 0x05, 0x08}, blob.ErrStreamEOF, 1},
		{"coded tag 3", []byte{0x06, 0x12, 0x07}, ErrBadCodedIndex, 2},
		{"null coded row", []byte{0x06, 0x12, 0x01}, ErrBadCodedIndex, 2},
		{"coded row over 24 bits", []byte{0x06, 0x12, 0xC4, 0x00, 0x00, 0x04}, ErrBadCodedIndex, 2},
		{"array sizes exceed rank", []byte{0x06, 0x14, 0x08, 0x01, 0x02, 0x03, 0x04, 0x00}, ErrBadArrayShape, 4},
		{"array bounds exceed rank", []byte{0x06, 0x14, 0x08, 0x01, 0x00, 0x02, 0x00, 0x00}, ErrBadArrayShape, 5},
		{"stray sentinel", []byte{0x06, 0x41, 0x08}, ErrUnexpectedElement, 1},
		{"double sentinel", []byte{0x05, 0x02, 0x01, 0x41, 0x08, 0x41, 0x08}, ErrUnexpectedElement, 5},
		{"internal element", []byte{0x06, 0x21}, ErrUnexpectedElement, 1},
		{"generic inst of int", []byte{0x06, 0x15, 0x08}, ErrUnexpectedElement, 2},
		{"truncated method params", []byte{0x00, 0x02, 0x01, 0x08}, blob.ErrStreamEOF, 1},
		{"truncated last param", []byte{0x00, 0x02, 0x01, 0x08, 0x1D}, blob.ErrStreamEOF, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := blob.NewReader(tt.in)
			s, err := ReadCallingConvention(r, readCtx(a), true)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, tt.want)
			var fe *blob.FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.offset, fe.Offset)
			assert.Equal(t, 0, r.Position(), "reader not rewound")
		})
	}
}

func TestDecodeUnresolved(t *testing.T) {
	_, err := Decode([]byte{0x06, 0x12, 0x0D}, readCtx(testArena(t)))
	assert.ErrorIs(t, err, metadata.ErrNoDefinition)

	_, err = Decode([]byte{0x06, 0x12, codedList}, &ReadContext{})
	assert.ErrorIs(t, err, ErrNoResolver)
}

func TestDepthCeiling(t *testing.T) {
	nested := func(n int) []byte {
		b := []byte{0x06}
		b = append(b, bytes.Repeat([]byte{0x1D}, n)...)
		return append(b, 0x08)
	}
	ctx := &ReadContext{Options: blob.Options{MaxDepth: 8}}

	_, err := Decode(nested(7), ctx)
	require.NoError(t, err)

	_, err = Decode(nested(20), ctx)
	assert.ErrorIs(t, err, ErrDepthExceeded)

	// Default ceiling still accepts realistic nesting.
	_, err = Decode(nested(40), &ReadContext{})
	require.NoError(t, err)
	_, err = Decode(nested(10000), &ReadContext{})
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestEncodeErrors(t *testing.T) {
	a := testArena(t)
	point, _ := a.ByToken(metadata.NewToken(metadata.TableTypeDef, 2))

	_, err := Encode(NewFieldSignature(nil), writeCtx())
	assert.ErrorIs(t, err, ErrNilType)

	_, err = Encode(NewFieldSignature(&CorLibType{Type: ElementPtr}), writeCtx())
	assert.ErrorIs(t, err, ErrUnexpectedElement)

	_, err = Encode(NewFieldSignature(&TypeDefOrRefType{Type: point}), &WriteContext{})
	assert.ErrorIs(t, err, ErrNoTokens)

	m, _ := a.Add(metadata.NewToken(metadata.TableMethod, 1), metadata.DefinitionInfo{Name: "NotAType"})
	_, err = Encode(NewFieldSignature(&TypeDefOrRefType{Type: m}), writeCtx())
	assert.ErrorIs(t, err, ErrBadCodedIndex)
}

func TestReferencedTypes(t *testing.T) {
	a := testArena(t)
	in := []byte{0x00, 0x02, 0x11, codedPoint,
		0x15, 0x12, codedList, 0x01, 0x11, codedPoint,
		0x1F, codedVolatile, 0x08}
	s, err := Decode(in, readCtx(a))
	require.NoError(t, err)

	var names []string
	for _, td := range ReferencedTypes(s) {
		names = append(names, td.FullName())
	}
	assert.Equal(t, []string{
		"App.Point",
		"System.Collections.Generic.List`1",
		"System.Runtime.CompilerServices.IsVolatile",
	}, names)

	visited := 0
	Walk(s, func(TypeSignature) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)
}

func TestDiagnose(t *testing.T) {
	a := testArena(t)
	var d blob.Diags

	_, err := Decode([]byte{0x06}, readCtx(a))
	require.Error(t, err)
	Diagnose(&d, err)

	_, err = Decode([]byte{0x09, 0x08}, readCtx(a))
	require.Error(t, err)
	Diagnose(&d, err)

	s, err := Decode([]byte{0x06, 0x08, 0xDE, 0xAD}, readCtx(a))
	require.NoError(t, err)
	DiagnoseTrailing(&d, s, 4)

	items := d.Items()
	require.Len(t, items, 3)
	assert.Equal(t, blob.DiagTruncated, items[0].Kind)
	assert.Equal(t, 1, items[0].Offset)
	assert.Equal(t, blob.DiagUnknownKind, items[1].Kind)
	assert.Equal(t, blob.Diag{Offset: 2, Kind: blob.DiagTrailing, Msg: "2 byte(s) after signature kept verbatim"}, items[2])
}

func TestArrayRank(t *testing.T) {
	a := testArena(t)
	in := []byte{0x06, 0x14, 0x08, 0xDF, 0xFF, 0xFF, 0xFF, 0x00, 0x00}
	s, err := Decode(in, readCtx(a))
	require.NoError(t, err)
	assert.Equal(t, "field int32[+536870911 dims]", s.String())
	out, err := Encode(s, writeCtx())
	require.NoError(t, err)
	assert.Equal(t, in, out)

	s, err = Decode([]byte{0x06, 0x14, 0x08, 0x03, 0x00, 0x00}, readCtx(a))
	require.NoError(t, err)
	assert.Equal(t, "field int32[,,]", s.String())

	arr := &ArrayType{Base: &CorLibType{Type: ElementI4}, Rank: 1, Sizes: []uint32{2, 3}}
	_, err = Encode(NewFieldSignature(arr), writeCtx())
	assert.ErrorIs(t, err, ErrBadArrayShape)
}
