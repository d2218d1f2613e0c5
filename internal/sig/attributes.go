package sig

import (
	"fmt"
	"strings"
)

// Kind is the low nibble of a signature's leading byte. It selects the
// grammar the rest of the blob follows.
type Kind uint8

const (
	KindDefault         Kind = 0x0
	KindC               Kind = 0x1
	KindStdCall         Kind = 0x2
	KindThisCall        Kind = 0x3
	KindFastCall        Kind = 0x4
	KindVarArg          Kind = 0x5
	KindField           Kind = 0x6
	KindLocal           Kind = 0x7
	KindProperty        Kind = 0x8
	KindGenericInstance Kind = 0xA
)

var kindNames = [16]string{
	KindDefault:         "default",
	KindC:               "unmanaged cdecl",
	KindStdCall:         "unmanaged stdcall",
	KindThisCall:        "unmanaged thiscall",
	KindFastCall:        "unmanaged fastcall",
	KindVarArg:          "vararg",
	KindField:           "field",
	KindLocal:           "local",
	KindProperty:        "property",
	KindGenericInstance: "generic instance",
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool { return k < 16 && kindNames[k] != "" }

// IsMethod reports whether k selects the method grammar. The six calling
// conventions share one layout; they only change how the callee is invoked.
func (k Kind) IsMethod() bool { return k <= KindVarArg }

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(0x%x)", uint8(k))
}

// Attributes is the full leading byte of a signature: a Kind in the low
// nibble and independent flags above it.
type Attributes uint8

const (
	KindMask         Attributes = 0x0F
	FlagGeneric      Attributes = 0x10
	FlagHasThis      Attributes = 0x20
	FlagExplicitThis Attributes = 0x40
)

// Kind returns the kind selector. Every byte maps to exactly one Kind.
func (a Attributes) Kind() Kind { return Kind(a & KindMask) }

// WithKind replaces the kind selector, keeping every flag bit.
func (a Attributes) WithKind(k Kind) Attributes {
	return a&^KindMask | Attributes(k)&KindMask
}

// Has reports whether every bit of f is set.
func (a Attributes) Has(f Attributes) bool { return a&f == f }

// With sets or clears the bits of f. The kind selector is never touched.
func (a Attributes) With(f Attributes, on bool) Attributes {
	f &^= KindMask
	if on {
		return a | f
	}
	return a &^ f
}

func (a Attributes) IsGeneric() bool    { return a.Has(FlagGeneric) }
func (a Attributes) HasThis() bool      { return a.Has(FlagHasThis) }
func (a Attributes) ExplicitThis() bool { return a.Has(FlagExplicitThis) }

func (a Attributes) IsMethod() bool          { return a.Kind().IsMethod() }
func (a Attributes) IsField() bool           { return a.Kind() == KindField }
func (a Attributes) IsLocal() bool           { return a.Kind() == KindLocal }
func (a Attributes) IsProperty() bool        { return a.Kind() == KindProperty }
func (a Attributes) IsGenericInstance() bool { return a.Kind() == KindGenericInstance }

func (a Attributes) String() string {
	parts := []string{a.Kind().String()}
	if a.IsGeneric() {
		parts = append(parts, "generic")
	}
	if a.HasThis() {
		parts = append(parts, "instance")
	}
	if a.ExplicitThis() {
		parts = append(parts, "explicit")
	}
	if rest := a &^ (KindMask | FlagGeneric | FlagHasThis | FlagExplicitThis); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02x", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// legalFlags returns the flag bits a constructed signature of kind k may
// carry. Decoded signatures keep whatever the blob held.
func legalFlags(k Kind) Attributes {
	switch {
	case k.IsMethod():
		return FlagGeneric | FlagHasThis | FlagExplicitThis
	case k == KindProperty:
		return FlagHasThis | FlagExplicitThis
	default:
		return 0
	}
}

func checkFlags(a Attributes) error {
	if extra := a &^ KindMask &^ legalFlags(a.Kind()); extra != 0 {
		return fmt.Errorf("%w: 0x%02x on %s signature", ErrInvalidFlags, uint8(extra), a.Kind())
	}
	return nil
}
