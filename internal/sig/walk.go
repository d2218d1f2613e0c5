package sig

import "cilmeta/internal/metadata"

// Walk calls fn for every type signature reachable from s, outermost first.
// Walking stops early when fn returns false.
func Walk(s CallingConvention, fn func(TypeSignature) bool) {
	w := walker{fn: fn}
	w.signature(s)
}

// WalkType is Walk for a single type signature.
func WalkType(t TypeSignature, fn func(TypeSignature) bool) {
	w := walker{fn: fn}
	w.typ(t)
}

// ReferencedTypes returns every named type s mentions, in first-seen order
// and without duplicates.
func ReferencedTypes(s CallingConvention) []metadata.TypeDescriptor {
	var c collector
	Walk(s, c.visit)
	return c.out
}

// ReferencedTypesOf is ReferencedTypes for a single type signature.
func ReferencedTypesOf(t TypeSignature) []metadata.TypeDescriptor {
	var c collector
	WalkType(t, c.visit)
	return c.out
}

type collector struct {
	out  []metadata.TypeDescriptor
	seen map[metadata.Handle]bool
}

func (c *collector) visit(t TypeSignature) bool {
	switch t := t.(type) {
	case *TypeDefOrRefType:
		c.add(t.Type)
	case *CustomModifierType:
		c.add(t.Modifier)
	case *GenericInstanceType:
		c.add(t.Generic)
	}
	return true
}

func (c *collector) add(td metadata.TypeDescriptor) {
	if td == nil || c.seen[td.Handle()] {
		return
	}
	if c.seen == nil {
		c.seen = make(map[metadata.Handle]bool)
	}
	c.seen[td.Handle()] = true
	c.out = append(c.out, td)
}

type walker struct {
	fn   func(TypeSignature) bool
	stop bool
}

func (w *walker) signature(s CallingConvention) {
	switch s := s.(type) {
	case *MethodSignature:
		w.method(s)
	case *FieldSignature:
		w.typ(s.FieldType)
	case *PropertySignature:
		w.typ(s.PropertyType)
		w.list(s.Parameters)
	case *LocalVariableSignature:
		w.list(s.Variables)
	case *GenericInstanceMethodSignature:
		w.list(s.TypeArguments)
	}
}

func (w *walker) method(m *MethodSignature) {
	if m == nil {
		return
	}
	w.typ(m.ReturnType)
	w.list(m.Parameters)
}

func (w *walker) list(types []TypeSignature) {
	for _, t := range types {
		w.typ(t)
	}
}

func (w *walker) typ(t TypeSignature) {
	if t == nil || w.stop {
		return
	}
	if !w.fn(t) {
		w.stop = true
		return
	}
	switch t := t.(type) {
	case *DerivedType:
		w.typ(t.Base)
	case *CustomModifierType:
		w.typ(t.Base)
	case *ArrayType:
		w.typ(t.Base)
	case *GenericInstanceType:
		w.list(t.Arguments)
	case *FunctionPointerType:
		w.method(t.Signature)
	}
}
