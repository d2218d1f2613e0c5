// Package refgraph builds the type reference graph of a definition set.
package refgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"cilmeta/internal/blob"
	"cilmeta/internal/metadata"
	"cilmeta/internal/sig"
)

// NodeName is the graph node for d: its full name tagged with its token,
// or the bare token for unnamed rows.
func NodeName(d metadata.TypeDescriptor) string {
	if name := d.FullName(); name != "" {
		return fmt.Sprintf("%s [%08x]", name, uint32(d.Token()))
	}
	return d.Token().String()
}

// Build decodes the signature of every live definition in arena and returns
// a graph with one node per definition and an edge from each definition to
// every type its signature mentions, nested ones included.
//
// In strict mode the first malformed blob fails the build. In best-effort
// mode the definition keeps its node, loses its edges, and the failure is
// recorded in the returned diagnostics.
func Build(arena *metadata.Arena, ctx *sig.ReadContext) (*lattice.Graph, *blob.Diags, error) {
	if ctx == nil {
		ctx = &sig.ReadContext{Resolver: arena}
	}
	g := &lattice.Graph{}
	diags := &blob.Diags{}
	for _, d := range arena.Definitions() {
		if d.Removed() {
			continue
		}
		from := NodeName(d)
		g.Nodes = append(g.Nodes, from)
		if d.Signature() == nil {
			continue
		}
		refs, err := references(d, ctx)
		if err != nil {
			if ctx.Options.Mode == blob.ModeStrict {
				return nil, nil, fmt.Errorf("refgraph: %s: %w", d.Token(), err)
			}
			sig.Diagnose(diags, fmt.Errorf("%s: %w", d.Token(), err))
			continue
		}
		for _, td := range refs {
			g.Edges = append(g.Edges, lattice.Edge{Caller: from, Callee: NodeName(td)})
		}
	}
	g.Dedup()
	return g, diags, nil
}

func references(d *metadata.Definition, ctx *sig.ReadContext) ([]metadata.TypeDescriptor, error) {
	if d.Table() == metadata.TableTypeSpec {
		t, err := sig.ReadTypeSignature(blob.NewReader(d.Signature()), ctx)
		if err != nil {
			return nil, err
		}
		return sig.ReferencedTypesOf(t), nil
	}
	s, err := sig.Decode(d.Signature(), ctx)
	if err != nil {
		return nil, err
	}
	return sig.ReferencedTypes(s), nil
}
