// Package builder assigns fresh tokens to the definitions of an image being
// rebuilt and patches every signature that refers to them.
package builder

import (
	"errors"
	"fmt"
	"sync/atomic"

	"cilmeta/internal/metadata"
)

var (
	ErrTokenNotFound       = errors.New("builder: no token registered for member")
	ErrTableMismatch       = errors.New("builder: token table does not match member")
	ErrDuplicateDefinition = errors.New("builder: member already registered")
	ErrDuplicateToken      = errors.New("builder: token already assigned")
	ErrNullToken           = errors.New("builder: null token")
	ErrSealed              = errors.New("builder: token mapping is sealed")
)

// Partition groups the tables whose tokens are tracked together. Tokens are
// numbered independently per table, so each partition has its own index.
type Partition uint8

const (
	PartitionType Partition = iota
	PartitionField
	PartitionMethod
	PartitionParam
	PartitionProperty
	PartitionEvent
	PartitionOther

	numPartitions
)

var partitionNames = [numPartitions]string{
	"type", "field", "method", "param", "property", "event", "other",
}

func (p Partition) String() string {
	if p < numPartitions {
		return partitionNames[p]
	}
	return fmt.Sprintf("Partition(%d)", uint8(p))
}

// PartitionOf returns the partition that tracks table t.
func PartitionOf(t metadata.TableIndex) Partition {
	switch t {
	case metadata.TableTypeDef:
		return PartitionType
	case metadata.TableField:
		return PartitionField
	case metadata.TableMethod:
		return PartitionMethod
	case metadata.TableParam:
		return PartitionParam
	case metadata.TableProperty:
		return PartitionProperty
	case metadata.TableEvent:
		return PartitionEvent
	default:
		return PartitionOther
	}
}

// TokenMapping records the token each member receives in the rebuilt image.
//
// It is filled by a single writer. After Seal it is read-only and safe for
// concurrent Lookup calls.
type TokenMapping struct {
	parts  [numPartitions]*oneToOne[metadata.Handle, metadata.Token]
	types  map[metadata.Handle]metadata.Member
	sealed atomic.Bool
}

// NewTokenMapping creates an empty mapping.
func NewTokenMapping() *TokenMapping {
	tm := &TokenMapping{types: make(map[metadata.Handle]metadata.Member)}
	for i := range tm.parts {
		tm.parts[i] = newOneToOne[metadata.Handle, metadata.Token]()
	}
	return tm
}

// Register assigns tok to member. tok must name a row of the member's own
// table. A failed call leaves the mapping unchanged.
func (tm *TokenMapping) Register(member metadata.Member, tok metadata.Token) error {
	if tm.sealed.Load() {
		return ErrSealed
	}
	native := member.Token().Table()
	if tok.IsNull() {
		return fmt.Errorf("%w: %s for %s", ErrNullToken, tok, memberName(member))
	}
	if native != tok.Table() {
		return fmt.Errorf("%w: cannot assign a %s token to a %s member", ErrTableMismatch, tok.Table(), native)
	}

	p := PartitionOf(native)
	keyTaken, valueTaken := tm.parts[p].add(member.Handle(), tok)
	switch {
	case keyTaken:
		prev, _ := tm.parts[p].value(member.Handle())
		return fmt.Errorf("%w: %s already has %s", ErrDuplicateDefinition, memberName(member), prev)
	case valueTaken:
		return fmt.Errorf("%w: %s", ErrDuplicateToken, tok)
	}
	if p == PartitionType {
		tm.types[member.Handle()] = member
	}
	return nil
}

// Lookup returns the token registered for member.
func (tm *TokenMapping) Lookup(member metadata.Member) (metadata.Token, error) {
	p := PartitionOf(member.Token().Table())
	tok, ok := tm.parts[p].value(member.Handle())
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTokenNotFound, memberName(member))
	}
	return tok, nil
}

// TokenFor makes the mapping usable as a signature token provider.
func (tm *TokenMapping) TokenFor(member metadata.Member) (metadata.Token, error) {
	return tm.Lookup(member)
}

// TypeByToken returns the type registered under tok. Only the type
// partition supports lookup by token.
func (tm *TokenMapping) TypeByToken(tok metadata.Token) (metadata.Member, bool) {
	h, ok := tm.parts[PartitionType].key(tok)
	if !ok {
		return nil, false
	}
	return tm.types[h], true
}

// Seal ends the build phase. Register fails from then on.
func (tm *TokenMapping) Seal() { tm.sealed.Store(true) }

// Sealed reports whether Seal has been called.
func (tm *TokenMapping) Sealed() bool { return tm.sealed.Load() }

// Len returns the number of registered members in partition p.
func (tm *TokenMapping) Len(p Partition) int {
	if p >= numPartitions {
		return 0
	}
	return tm.parts[p].size()
}

// Entry is one registration.
type Entry struct {
	Partition Partition       `json:"partition" cbor:"1,keyasint"`
	Handle    metadata.Handle `json:"handle" cbor:"2,keyasint"`
	Token     metadata.Token  `json:"token" cbor:"3,keyasint"`
}

// Entries returns every registration, by partition then registration order.
func (tm *TokenMapping) Entries() []Entry {
	var out []Entry
	for p, rel := range tm.parts {
		for _, h := range rel.order {
			tok, _ := rel.value(h)
			out = append(out, Entry{Partition: Partition(p), Handle: h, Token: tok})
		}
	}
	return out
}

func memberName(m metadata.Member) string {
	if s, ok := m.(fmt.Stringer); ok {
		return fmt.Sprintf("%s (%s)", s, m.Token())
	}
	return m.Token().String()
}
