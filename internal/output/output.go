// Package output writes cilmeta reports as JSON or CBOR.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"cilmeta/internal/blob"
	"cilmeta/internal/builder"
)

// Format selects the report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat accepts "json" or "cbor".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCBOR:
		return Format(s), nil
	}
	return "", fmt.Errorf("output: unknown format %q", s)
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("output: CBOR encoder initialization failed: " + err.Error())
	}
}

// SignatureReport describes one decoded blob.
type SignatureReport struct {
	Token      string      `json:"token,omitempty" cbor:"1,keyasint,omitempty"`
	Name       string      `json:"name,omitempty" cbor:"2,keyasint,omitempty"`
	Kind       string      `json:"kind,omitempty" cbor:"3,keyasint,omitempty"`
	Attributes string      `json:"attributes,omitempty" cbor:"4,keyasint,omitempty"`
	Text       string      `json:"text,omitempty" cbor:"5,keyasint,omitempty"`
	Trailing   string      `json:"trailing,omitempty" cbor:"6,keyasint,omitempty"`
	RoundTrip  *bool       `json:"round_trip,omitempty" cbor:"7,keyasint,omitempty"`
	Diags      []blob.Diag `json:"diags,omitempty" cbor:"8,keyasint,omitempty"`
}

// TokenMapReport is the outcome of a rebuild.
type TokenMapReport struct {
	Entries  []builder.Entry   `json:"entries" cbor:"1,keyasint"`
	Stats    builder.Stats     `json:"stats" cbor:"2,keyasint"`
	Failures []builder.Failure `json:"failures,omitempty" cbor:"3,keyasint,omitempty"`
}

// NewTokenMapReport summarises res.
func NewTokenMapReport(res *builder.Result) *TokenMapReport {
	return &TokenMapReport{
		Entries:  res.Mapping.Entries(),
		Stats:    res.Stats,
		Failures: res.Failures,
	}
}

// Write encodes v to w.
func Write(w io.Writer, f Format, v any) error {
	switch f {
	case FormatCBOR:
		if err := encMode.NewEncoder(w).Encode(v); err != nil {
			return fmt.Errorf("output: encode cbor: %w", err)
		}
		return nil
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("output: encode json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("output: unknown format %q", f)
}

// WriteFile writes v to path, creating parent directories.
func WriteFile(path string, f Format, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer file.Close()
	if err := Write(file, f, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// MarshalCBOR encodes v with the deterministic CBOR encoding.
func MarshalCBOR(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalCBOR decodes data into v.
func UnmarshalCBOR(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
