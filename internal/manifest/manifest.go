// Package manifest reads and writes TOML descriptions of a definition set.
//
// A manifest lists one [[definition]] table per row:
//
//	[[definition]]
//	token = "0x04000001"
//	name = "Origin"
//	signature = "06 11 08"
//
// The token may instead be given as table and row:
//
//	table = "Field"
//	row = 1
package manifest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"cilmeta/internal/builder"
	"cilmeta/internal/metadata"
)

var ErrBadEntry = errors.New("manifest: bad definition")

// Manifest is a definition set.
type Manifest struct {
	Definitions []Entry `toml:"definition"`
}

// Entry is one definition.
type Entry struct {
	Token     string `toml:"token,omitempty"`
	Table     string `toml:"table,omitempty"`
	Row       uint32 `toml:"row,omitempty"`
	Namespace string `toml:"namespace,omitempty"`
	Name      string `toml:"name,omitempty"`
	ValueType bool   `toml:"value_type,omitempty"`
	// Signature is the blob in hex. Whitespace is ignored.
	Signature string `toml:"signature,omitempty"`
	Removed   bool   `toml:"removed,omitempty"`
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest. Unknown keys are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("manifest: unknown key %s", undec[0])
	}
	return &m, nil
}

// EntryToken returns the token an entry names.
func (e Entry) EntryToken() (metadata.Token, error) {
	if e.Token != "" {
		if e.Table != "" || e.Row != 0 {
			return 0, fmt.Errorf("%w: token %s given together with table/row", ErrBadEntry, e.Token)
		}
		v, err := strconv.ParseUint(e.Token, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: token %q: %v", ErrBadEntry, e.Token, err)
		}
		return metadata.Token(v), nil
	}
	t, ok := metadata.ParseTableIndex(e.Table)
	if !ok {
		return 0, fmt.Errorf("%w: unknown table %q", ErrBadEntry, e.Table)
	}
	if e.Row == 0 || e.Row > metadata.MaxRID {
		return 0, fmt.Errorf("%w: row %d out of range for %s", ErrBadEntry, e.Row, t)
	}
	return metadata.NewToken(t, e.Row), nil
}

// SignatureBytes decodes the entry's hex blob. An empty string yields nil.
func (e Entry) SignatureBytes() ([]byte, error) {
	s := strings.Join(strings.Fields(e.Signature), "")
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: signature %q: %v", ErrBadEntry, e.Signature, err)
	}
	return b, nil
}

// Arena loads the manifest into a fresh arena. Entries marked removed are
// added and then removed, so references to them still resolve.
func (m *Manifest) Arena() (*metadata.Arena, error) {
	a := metadata.NewArena()
	for i, e := range m.Definitions {
		tok, err := e.EntryToken()
		if err != nil {
			return nil, fmt.Errorf("definition %d: %w", i+1, err)
		}
		blob, err := e.SignatureBytes()
		if err != nil {
			return nil, fmt.Errorf("definition %d: %w", i+1, err)
		}
		d, err := a.Add(tok, metadata.DefinitionInfo{
			Namespace: e.Namespace,
			Name:      e.Name,
			ValueType: e.ValueType,
			Signature: blob,
		})
		if err != nil {
			return nil, fmt.Errorf("definition %d: %w", i+1, err)
		}
		if e.Removed {
			if err := a.Remove(d.Handle()); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// FromArena describes every definition of a, removed ones included.
func FromArena(a *metadata.Arena) *Manifest {
	m := &Manifest{}
	for _, d := range a.Definitions() {
		m.Definitions = append(m.Definitions, entryFor(d, d.Token(), d.Signature(), d.Removed()))
	}
	return m
}

// Rebuilt describes the image produced by a rebuild: live definitions under
// their new tokens with patched signatures, ordered by token.
func Rebuilt(a *metadata.Arena, res *builder.Result) (*Manifest, error) {
	m := &Manifest{}
	for _, e := range res.Mapping.Entries() {
		d, ok := a.Lookup(e.Handle)
		if !ok {
			return nil, fmt.Errorf("manifest: mapping names unknown handle %d", e.Handle)
		}
		m.Definitions = append(m.Definitions, entryFor(d, e.Token, res.Blobs[e.Handle], false))
	}
	sortEntries(m.Definitions)
	return m, nil
}

func entryFor(d *metadata.Definition, tok metadata.Token, sig []byte, removed bool) Entry {
	return Entry{
		Token:     fmt.Sprintf("0x%08X", uint32(tok)),
		Namespace: d.Namespace(),
		Name:      d.Name(),
		ValueType: d.IsValueType(),
		Signature: FormatHex(sig),
		Removed:   removed,
	}
}

func sortEntries(es []Entry) {
	key := func(e Entry) uint64 {
		v, _ := strconv.ParseUint(e.Token, 0, 32)
		return v
	}
	sort.SliceStable(es, func(i, j int) bool { return key(es[i]) < key(es[j]) })
}

// FormatHex renders b as space-separated upper-case hex pairs.
func FormatHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	return sb.String()
}

// Write encodes m as TOML.
func (m *Manifest) Write(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	return nil
}

// Save writes m to path.
func (m *Manifest) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	defer f.Close()
	return m.Write(f)
}
