package builder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"cilmeta/internal/blob"
	"cilmeta/internal/metadata"
	"cilmeta/internal/sig"
)

// tableOrder is the order tokens are handed out in. Tables missing from it
// follow in ascending table index.
var tableOrder = []metadata.TableIndex{
	metadata.TableTypeDef,
	metadata.TableTypeRef,
	metadata.TableTypeSpec,
	metadata.TableField,
	metadata.TableMethod,
	metadata.TableParam,
	metadata.TableProperty,
	metadata.TableEvent,
	metadata.TableMemberRef,
	metadata.TableStandAloneSig,
	metadata.TableMethodSpec,
}

// Options controls a rebuild.
type Options struct {
	// Workers bounds the number of signatures patched concurrently;
	// 0 = GOMAXPROCS.
	Workers int
	Decode  blob.Options
	Logger  *slog.Logger
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Failure records a signature that could not be patched in best-effort mode.
// The original blob is kept for it.
type Failure struct {
	Handle metadata.Handle `json:"handle"`
	Token  metadata.Token  `json:"token"`
	Msg    string          `json:"msg"`
}

// Stats summarises a rebuild.
type Stats struct {
	Registered int `json:"registered"`
	Patched    int `json:"patched"`
	Unchanged  int `json:"unchanged"`
	Failed     int `json:"failed"`
}

// Result is the outcome of a rebuild.
type Result struct {
	Mapping *TokenMapping
	// Blobs holds the re-encoded signature of every live definition that
	// carries one, keyed by handle.
	Blobs    map[metadata.Handle][]byte
	Failures []Failure
	Stats    Stats
}

// AssignTokens registers every live definition of arena under a fresh token
// and seals the mapping. Rows are numbered per table in arena order, so
// removed definitions shift their successors down.
func AssignTokens(arena *metadata.Arena, log *slog.Logger) (*TokenMapping, error) {
	tm := NewTokenMapping()
	for _, t := range orderedTables(arena) {
		defs := arena.Table(t)
		if len(defs) > metadata.MaxRID {
			return nil, fmt.Errorf("builder: %s has %d rows, more than a token can address", t, len(defs))
		}
		for i, d := range defs {
			if err := tm.Register(d, metadata.NewToken(t, uint32(i+1))); err != nil {
				return nil, err
			}
		}
		if log != nil {
			log.Debug("assigned tokens", "table", t.String(), "rows", len(defs))
		}
	}
	tm.Seal()
	return tm, nil
}

func orderedTables(arena *metadata.Arena) []metadata.TableIndex {
	present := arena.Tables()
	seen := make(map[metadata.TableIndex]bool, len(tableOrder))
	out := make([]metadata.TableIndex, 0, len(present))
	for _, t := range tableOrder {
		seen[t] = true
		out = append(out, t)
	}
	for _, t := range present {
		if !seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// Rebuild assigns new tokens to every live definition of arena and
// re-encodes each signature blob so its type references carry the new
// tokens. The arena is not modified.
func Rebuild(ctx context.Context, arena *metadata.Arena, opts Options) (*Result, error) {
	log := opts.logger()

	tm, err := AssignTokens(arena, log)
	if err != nil {
		return nil, err
	}

	var jobs []*metadata.Definition
	for _, d := range arena.Definitions() {
		if !d.Removed() && d.Signature() != nil {
			jobs = append(jobs, d)
		}
	}

	patched := make([][]byte, len(jobs))
	errs := make([]error, len(jobs))
	rctx := &sig.ReadContext{Resolver: arena, Options: opts.Decode}
	wctx := &sig.WriteContext{Tokens: tm, Options: opts.Decode}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, d := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := patchSignature(d, rctx, wctx)
			if err != nil {
				if opts.Decode.Mode == blob.ModeStrict {
					return err
				}
				errs[i] = err
				return nil
			}
			patched[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Mapping: tm,
		Blobs:   make(map[metadata.Handle][]byte, len(jobs)),
	}
	for p := Partition(0); p < numPartitions; p++ {
		res.Stats.Registered += tm.Len(p)
	}
	for i, d := range jobs {
		if errs[i] != nil {
			res.Blobs[d.Handle()] = d.Signature()
			res.Failures = append(res.Failures, Failure{Handle: d.Handle(), Token: d.Token(), Msg: errs[i].Error()})
			res.Stats.Failed++
			log.Warn("signature kept unpatched", "member", d.String(), "token", d.Token().String(), "err", errs[i])
			continue
		}
		res.Blobs[d.Handle()] = patched[i]
		if bytes.Equal(patched[i], d.Signature()) {
			res.Stats.Unchanged++
		} else {
			res.Stats.Patched++
		}
	}

	log.Info("rebuild complete",
		"registered", res.Stats.Registered,
		"patched", res.Stats.Patched,
		"unchanged", res.Stats.Unchanged,
		"failed", res.Stats.Failed)
	return res, nil
}

func patchSignature(d *metadata.Definition, rctx *sig.ReadContext, wctx *sig.WriteContext) ([]byte, error) {
	if d.Table() == metadata.TableTypeSpec {
		return patchTypeSpec(d, rctx, wctx)
	}
	s, err := sig.Decode(d.Signature(), rctx)
	if err != nil {
		return nil, fmt.Errorf("builder: decode signature of %s (%s): %w", d, d.Token(), err)
	}
	out, err := sig.Encode(s, wctx)
	if err != nil {
		return nil, fmt.Errorf("builder: encode signature of %s (%s): %w", d, d.Token(), err)
	}
	return out, nil
}

// patchTypeSpec handles TypeSpec rows, whose blob is a bare type signature
// with no calling convention byte.
func patchTypeSpec(d *metadata.Definition, rctx *sig.ReadContext, wctx *sig.WriteContext) ([]byte, error) {
	r := blob.NewReader(d.Signature())
	t, err := sig.ReadTypeSignature(r, rctx)
	if err != nil {
		return nil, fmt.Errorf("builder: decode type spec %s: %w", d.Token(), err)
	}
	w := blob.NewWriter()
	if err := sig.WriteTypeSignature(w, wctx, t); err != nil {
		return nil, fmt.Errorf("builder: encode type spec %s: %w", d.Token(), err)
	}
	w.WriteBytes(r.ReadToEnd())
	return w.Bytes(), nil
}
