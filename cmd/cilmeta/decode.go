package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"cilmeta/internal/blob"
	"cilmeta/internal/manifest"
	"cilmeta/internal/metadata"
	"cilmeta/internal/output"
	"cilmeta/internal/sig"
)

type decodeFlags struct {
	common   commonFlags
	hexBlob  string
	manifest string
	typeBlob bool
	format   string
	out      string
}

func cmdDecode(args []string) error {
	reports, f, err := runDecode("decode", args, false)
	if err != nil {
		return err
	}
	return emitReports(reports, f)
}

func cmdRoundTrip(args []string) error {
	reports, f, err := runDecode("roundtrip", args, true)
	if err != nil {
		return err
	}
	if err := emitReports(reports, f); err != nil {
		return err
	}
	bad := 0
	for _, r := range reports {
		if undecodable(r) || (r.RoundTrip != nil && !*r.RoundTrip) {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d blobs did not round-trip", bad, len(reports))
	}
	return nil
}

// undecodable reports a blob that best-effort mode could only diagnose.
func undecodable(r output.SignatureReport) bool {
	return r.Text == "" && len(r.Diags) > 0
}

func runDecode(name string, args []string, roundTrip bool) ([]output.SignatureReport, *decodeFlags, error) {
	f := &decodeFlags{}
	fs := newFlagSet(name)
	fs.StringVar(&f.hexBlob, "hex", "", "signature blob in hex")
	fs.StringVar(&f.manifest, "manifest", "", "TOML definition manifest")
	fs.BoolVar(&f.typeBlob, "type", false, "--hex blob is a bare type signature (TypeSpec)")
	fs.StringVar(&f.format, "format", "text", "output format: text, json or cbor")
	fs.StringVar(&f.out, "out", "", "output file (default stdout)")
	f.common.add(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if (f.hexBlob == "") == (f.manifest == "") {
		return nil, nil, fmt.Errorf("exactly one of --hex or --manifest is required")
	}
	if f.format != "text" {
		if _, err := output.ParseFormat(f.format); err != nil {
			return nil, nil, err
		}
	}
	e, err := f.common.setup()
	if err != nil {
		return nil, nil, err
	}

	var (
		arena *metadata.Arena
		defs  []*metadata.Definition
		rctx  *sig.ReadContext
	)
	if f.hexBlob != "" {
		data, err := parseHex(f.hexBlob)
		if err != nil {
			return nil, nil, err
		}
		arena = metadata.NewArena()
		tok := metadata.NewToken(metadata.TableStandAloneSig, 1)
		if f.typeBlob {
			tok = metadata.NewToken(metadata.TableTypeSpec, 1)
		}
		d, err := arena.Add(tok, metadata.DefinitionInfo{Signature: data})
		if err != nil {
			return nil, nil, err
		}
		defs = []*metadata.Definition{d}
		rctx = &sig.ReadContext{Resolver: metadata.StubResolver{Arena: arena}, Options: e.opts}
	} else {
		arena, err = loadArena(f.manifest)
		if err != nil {
			return nil, nil, err
		}
		for _, d := range arena.Definitions() {
			if d.Signature() != nil {
				defs = append(defs, d)
			}
		}
		rctx = &sig.ReadContext{Resolver: arena, Options: e.opts}
	}
	wctx := &sig.WriteContext{Tokens: metadata.OriginalTokens{}, Options: e.opts}

	reports := make([]output.SignatureReport, 0, len(defs))
	failed := 0
	for _, d := range defs {
		r, err := inspect(d, rctx, wctx, roundTrip)
		if err != nil {
			if e.opts.Mode == blob.ModeStrict {
				return nil, nil, fmt.Errorf("%s: %w", d.Token(), err)
			}
			var diags blob.Diags
			sig.Diagnose(&diags, err)
			r.Diags = diags.Items()
			failed++
		}
		if f.manifest != "" {
			r.Token = fmt.Sprintf("0x%08X", uint32(d.Token()))
			r.Name = d.FullName()
		}
		reports = append(reports, r)
	}
	e.log.Debug("decoded", "blobs", len(defs), "failed", failed)
	return reports, f, nil
}

// inspect decodes the blob of d and, when roundTrip is set, re-encodes it
// under the original tokens and compares the bytes.
func inspect(d *metadata.Definition, rctx *sig.ReadContext, wctx *sig.WriteContext, roundTrip bool) (output.SignatureReport, error) {
	data := d.Signature()
	var (
		r       output.SignatureReport
		diags   blob.Diags
		encoded []byte
	)
	if d.Table() == metadata.TableTypeSpec {
		rd := blob.NewReader(data)
		t, err := sig.ReadTypeSignature(rd, rctx)
		if err != nil {
			return r, err
		}
		trailing := rd.ReadToEnd()
		r.Kind = "typespec"
		r.Text = t.String()
		r.Trailing = manifest.FormatHex(trailing)
		if len(trailing) > 0 {
			diags.Addf(len(data)-len(trailing), blob.DiagTrailing, "%d byte(s) after type kept verbatim", len(trailing))
		}
		if roundTrip {
			w := blob.NewWriter()
			if err := sig.WriteTypeSignature(w, wctx, t); err != nil {
				return r, err
			}
			w.WriteBytes(trailing)
			encoded = w.Bytes()
		}
	} else {
		s, err := sig.Decode(data, rctx)
		if err != nil {
			return r, err
		}
		r.Kind = s.Attributes().Kind().String()
		r.Attributes = s.Attributes().String()
		r.Text = s.String()
		r.Trailing = manifest.FormatHex(s.TrailingData())
		sig.DiagnoseTrailing(&diags, s, len(data))
		if roundTrip {
			if encoded, err = sig.Encode(s, wctx); err != nil {
				return r, err
			}
		}
	}
	if roundTrip {
		ok := bytes.Equal(encoded, data)
		r.RoundTrip = &ok
		if !ok {
			diags.Addf(0, blob.DiagInvalid, "re-encoded as %s", manifest.FormatHex(encoded))
		}
	}
	r.Diags = diags.Items()
	return r, nil
}

func emitReports(reports []output.SignatureReport, f *decodeFlags) error {
	var w io.Writer = os.Stdout
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", f.out, err)
		}
		defer file.Close()
		w = file
	}
	if f.format != "text" {
		return output.Write(w, output.Format(f.format), reports)
	}
	for _, r := range reports {
		writeReportText(w, r)
	}
	return nil
}

func writeReportText(w io.Writer, r output.SignatureReport) {
	label := r.Token
	if r.Name != "" {
		label += " " + r.Name
	}
	if label != "" {
		fmt.Fprintf(w, "%s\n  ", label)
	}
	if r.Text != "" {
		fmt.Fprintf(w, "%s", r.Text)
		if r.Attributes != "" {
			fmt.Fprintf(w, "  [%s]", r.Attributes)
		}
	} else {
		fmt.Fprintf(w, "<undecodable>")
	}
	if r.RoundTrip != nil {
		if *r.RoundTrip {
			fmt.Fprintf(w, "  round-trip ok")
		} else {
			fmt.Fprintf(w, "  ROUND-TRIP MISMATCH")
		}
	}
	fmt.Fprintln(w)
	if r.Trailing != "" {
		fmt.Fprintf(w, "  trailing: %s\n", r.Trailing)
	}
	for _, d := range r.Diags {
		fmt.Fprintf(w, "  %s\n", d)
	}
}
