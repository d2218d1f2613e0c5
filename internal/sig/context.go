package sig

import (
	"errors"

	"cilmeta/internal/blob"
	"cilmeta/internal/metadata"
)

var (
	ErrUnsupportedKind    = errors.New("sig: unsupported signature kind")
	ErrUnexpectedElement  = errors.New("sig: unexpected element type")
	ErrDepthExceeded      = errors.New("sig: nesting too deep")
	ErrBadCodedIndex      = errors.New("sig: invalid TypeDefOrRef coded index")
	ErrBadArrayShape      = errors.New("sig: array shape exceeds rank")
	ErrInvalidFlags       = errors.New("sig: flags not allowed for signature kind")
	ErrSentinelOutOfRange = errors.New("sig: sentinel position out of range")
	ErrNoResolver         = errors.New("sig: no resolver")
	ErrNoTokens           = errors.New("sig: no token provider")
	ErrNilType            = errors.New("sig: nil type signature")
)

// Resolver maps coded type references found in a blob to live definitions.
type Resolver interface {
	ResolveType(tok metadata.Token) (metadata.TypeDescriptor, error)
}

// TokenProvider supplies the token a referenced type is persisted under.
type TokenProvider interface {
	TokenFor(m metadata.Member) (metadata.Token, error)
}

// ReadContext carries what decoding needs beyond the bytes themselves.
type ReadContext struct {
	Resolver Resolver
	Options  blob.Options
}

// WriteContext carries what encoding needs beyond the signature itself.
type WriteContext struct {
	Tokens  TokenProvider
	Options blob.Options
}
