package metadata

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoDefinition = errors.New("metadata: no definition for token")
	ErrTokenTaken   = errors.New("metadata: token already defined")
	ErrNotAType     = errors.New("metadata: token does not name a type")
	ErrNullRow      = errors.New("metadata: null token")
)

// Handle is a stable identity for a definition, independent of the token it
// is persisted under. Handles start at 1 and are never reused.
type Handle uint32

// Member is anything a token can name.
type Member interface {
	Handle() Handle
	// Token returns the token the member was loaded with. Its table is the
	// member's native category.
	Token() Token
}

// TypeDescriptor is a member that describes a type.
type TypeDescriptor interface {
	Member
	Namespace() string
	Name() string
	FullName() string
	// IsValueType reports whether instances are passed by value.
	IsValueType() bool
}

// DefinitionInfo is the descriptive part of a definition.
type DefinitionInfo struct {
	Namespace string
	Name      string
	ValueType bool
	// Signature is the raw signature blob, nil for tables that carry none.
	Signature []byte
}

// Definition is one row of the in-memory image.
type Definition struct {
	handle  Handle
	token   Token
	info    DefinitionInfo
	removed bool
}

func (d *Definition) Handle() Handle    { return d.handle }
func (d *Definition) Token() Token      { return d.token }
func (d *Definition) Table() TableIndex { return d.token.Table() }
func (d *Definition) Namespace() string { return d.info.Namespace }
func (d *Definition) Name() string      { return d.info.Name }
func (d *Definition) IsValueType() bool { return d.info.ValueType }
func (d *Definition) Signature() []byte { return d.info.Signature }
func (d *Definition) Removed() bool     { return d.removed }

// SetSignature replaces the raw signature blob.
func (d *Definition) SetSignature(b []byte) { d.info.Signature = b }

func (d *Definition) FullName() string {
	if d.info.Namespace == "" {
		return d.info.Name
	}
	return d.info.Namespace + "." + d.info.Name
}

func (d *Definition) String() string {
	if name := d.FullName(); name != "" {
		return name
	}
	return d.token.String()
}

// Arena owns every definition of an image and resolves tokens to them.
type Arena struct {
	defs    []*Definition // index = handle - 1
	byToken map[Token]*Definition
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{byToken: make(map[Token]*Definition)}
}

// Add registers a definition loaded under tok.
func (a *Arena) Add(tok Token, info DefinitionInfo) (*Definition, error) {
	if tok.IsNull() {
		return nil, fmt.Errorf("%w: %s", ErrNullRow, tok)
	}
	if _, ok := a.byToken[tok]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenTaken, tok)
	}
	d := &Definition{
		handle: Handle(len(a.defs) + 1),
		token:  tok,
		info:   info,
	}
	a.defs = append(a.defs, d)
	a.byToken[tok] = d
	return d, nil
}

// Len returns the number of definitions, removed ones included.
func (a *Arena) Len() int { return len(a.defs) }

// Lookup returns the definition with handle h.
func (a *Arena) Lookup(h Handle) (*Definition, bool) {
	if h == 0 || int(h) > len(a.defs) {
		return nil, false
	}
	return a.defs[h-1], true
}

// ByToken returns the definition loaded under tok.
func (a *Arena) ByToken(tok Token) (*Definition, bool) {
	d, ok := a.byToken[tok]
	return d, ok
}

// Remove marks the definition as dropped from the next rebuild. It still
// resolves by its original token so stale references can be reported.
func (a *Arena) Remove(h Handle) error {
	d, ok := a.Lookup(h)
	if !ok {
		return fmt.Errorf("metadata: unknown handle %d", h)
	}
	d.removed = true
	return nil
}

// Definitions returns every definition in insertion order.
func (a *Arena) Definitions() []*Definition {
	out := make([]*Definition, len(a.defs))
	copy(out, a.defs)
	return out
}

// Table returns the live definitions of one table in insertion order.
func (a *Arena) Table(t TableIndex) []*Definition {
	var out []*Definition
	for _, d := range a.defs {
		if !d.removed && d.Table() == t {
			out = append(out, d)
		}
	}
	return out
}

// Tables returns the tables that hold at least one live definition,
// ascending.
func (a *Arena) Tables() []TableIndex {
	seen := make(map[TableIndex]bool)
	for _, d := range a.defs {
		if !d.removed {
			seen[d.Table()] = true
		}
	}
	out := make([]TableIndex, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResolveType maps a TypeDef, TypeRef or TypeSpec token to its definition.
func (a *Arena) ResolveType(tok Token) (TypeDescriptor, error) {
	switch tok.Table() {
	case TableTypeDef, TableTypeRef, TableTypeSpec:
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotAType, tok)
	}
	d, ok := a.byToken[tok]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDefinition, tok)
	}
	return d, nil
}

// OriginalTokens hands back the token each member was loaded with. Encoding
// through it reproduces the input image.
type OriginalTokens struct{}

func (OriginalTokens) TokenFor(m Member) (Token, error) {
	tok := m.Token()
	if tok.IsNull() {
		return 0, fmt.Errorf("%w: %s", ErrNullRow, tok)
	}
	return tok, nil
}

// StubResolver resolves every type token against Arena, adding an unnamed
// definition the first time a token is seen. It lets a lone blob be decoded
// without the tables it refers to.
type StubResolver struct {
	Arena *Arena
}

func (s StubResolver) ResolveType(tok Token) (TypeDescriptor, error) {
	td, err := s.Arena.ResolveType(tok)
	if !errors.Is(err, ErrNoDefinition) {
		return td, err
	}
	d, err := s.Arena.Add(tok, DefinitionInfo{})
	if err != nil {
		return nil, err
	}
	return d, nil
}
