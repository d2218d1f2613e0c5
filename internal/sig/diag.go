package sig

import (
	"errors"

	"cilmeta/internal/blob"
)

// DiagKindOf classifies a decode error.
func DiagKindOf(err error) blob.DiagKind {
	switch {
	case errors.Is(err, blob.ErrStreamEOF):
		return blob.DiagTruncated
	case errors.Is(err, blob.ErrStreamOverrun):
		return blob.DiagOverflow
	case errors.Is(err, ErrUnsupportedKind):
		return blob.DiagUnknownKind
	default:
		return blob.DiagInvalid
	}
}

// Diagnose records err in d at the offset it carries, or 0 when it has none.
func Diagnose(d *blob.Diags, err error) {
	off := 0
	var fe *blob.FormatError
	if errors.As(err, &fe) {
		off = fe.Offset
	}
	d.Add(off, DiagKindOf(err), err.Error())
}

// DiagnoseTrailing records the trailing bytes of s, if any.
func DiagnoseTrailing(d *blob.Diags, s CallingConvention, blobLen int) {
	if n := len(s.TrailingData()); n > 0 {
		d.Addf(blobLen-n, blob.DiagTrailing, "%d byte(s) after signature kept verbatim", n)
	}
}
