// Package blob provides the byte-level primitives, decode options and
// diagnostics shared by the signature codec.
package blob

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagTruncated   DiagKind = "truncated"
	DiagInvalid     DiagKind = "invalid"
	DiagUnknownKind DiagKind = "unknown_kind"
	DiagOverflow    DiagKind = "overflow"
	DiagTrailing    DiagKind = "trailing"
)

// Diag records a non-fatal issue encountered while decoding.
type Diag struct {
	Offset int      `json:"offset"`
	Kind   DiagKind `json:"kind"`
	Msg    string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Offset, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(offset int, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{Offset: offset, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(offset int, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Offset: offset, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Mode controls error handling behavior across a batch of blobs.
type Mode int

const (
	ModeStrict     Mode = iota // first malformed blob aborts the batch
	ModeBestEffort             // skip malformed blobs, accumulate diags
)

// Options controls decoding behavior across packages.
type Options struct {
	Mode     Mode
	MaxDepth int // nested signature ceiling; 0 = use default
}

// DefaultMaxDepth is the default nesting ceiling for type signatures.
const DefaultMaxDepth = 64

func (o Options) EffectiveMaxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

// FormatError reports a malformed blob. Offset is the position within the
// blob at which decoding failed.
type FormatError struct {
	Offset int
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("blob: offset 0x%x: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("blob: offset 0x%x: %s", e.Offset, e.Msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Errorf builds a FormatError at offset wrapping err.
func Errorf(offset int, err error, format string, args ...any) *FormatError {
	return &FormatError{Offset: offset, Msg: fmt.Sprintf(format, args...), Err: err}
}
