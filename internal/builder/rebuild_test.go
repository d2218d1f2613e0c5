package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cilmeta/internal/blob"
	"cilmeta/internal/metadata"
)

type image struct {
	arena  *metadata.Arena
	module *metadata.Definition
	dead   *metadata.Definition // TypeDef 2, removed
	point  *metadata.Definition // TypeDef 3
	list   *metadata.Definition // TypeRef 1
	spec   *metadata.Definition // TypeSpec 1
	origin *metadata.Definition // Field 1, typed App.Point
	count  *metadata.Definition // Field 2
	items  *metadata.Definition // Field 3, typed List`1<int32>
	run    *metadata.Definition // Method 1
}

func buildImage(t *testing.T) *image {
	t.Helper()
	a := metadata.NewArena()
	add := func(table metadata.TableIndex, rid uint32, info metadata.DefinitionInfo) *metadata.Definition {
		d, err := a.Add(metadata.NewToken(table, rid), info)
		require.NoError(t, err)
		return d
	}
	img := &image{arena: a}
	img.module = add(metadata.TableTypeDef, 1, metadata.DefinitionInfo{Name: "<Module>"})
	img.dead = add(metadata.TableTypeDef, 2, metadata.DefinitionInfo{Namespace: "App", Name: "Unused"})
	img.point = add(metadata.TableTypeDef, 3, metadata.DefinitionInfo{Namespace: "App", Name: "Point", ValueType: true})
	img.list = add(metadata.TableTypeRef, 1, metadata.DefinitionInfo{Namespace: "System.Collections.Generic", Name: "List`1"})
	// List`1<App.Point>
	img.spec = add(metadata.TableTypeSpec, 1, metadata.DefinitionInfo{Signature: []byte{0x15, 0x12, 0x05, 0x01, 0x11, 0x0C}})
	img.origin = add(metadata.TableField, 1, metadata.DefinitionInfo{Name: "Origin", Signature: []byte{0x06, 0x11, 0x0C}})
	img.count = add(metadata.TableField, 2, metadata.DefinitionInfo{Name: "Count", Signature: []byte{0x06, 0x08}})
	img.items = add(metadata.TableField, 3, metadata.DefinitionInfo{Name: "Items", Signature: []byte{0x06, 0x15, 0x12, 0x05, 0x01, 0x08, 0xAA}})
	// instance void Move(App.Point)
	img.run = add(metadata.TableMethod, 1, metadata.DefinitionInfo{Name: "Move", Signature: []byte{0x20, 0x01, 0x01, 0x11, 0x0C}})
	return img
}

func TestRebuildRenumbers(t *testing.T) {
	img := buildImage(t)
	require.NoError(t, img.arena.Remove(img.dead.Handle()))
	require.NoError(t, img.arena.Remove(img.count.Handle()))

	res, err := Rebuild(context.Background(), img.arena, Options{Workers: 2})
	require.NoError(t, err)
	require.True(t, res.Mapping.Sealed())

	tokens := map[*metadata.Definition]metadata.Token{
		img.module: 0x02000001,
		img.point:  0x02000002,
		img.list:   0x01000001,
		img.spec:   0x1B000001,
		img.origin: 0x04000001,
		img.items:  0x04000002,
		img.run:    0x06000001,
	}
	for d, want := range tokens {
		got, err := res.Mapping.Lookup(d)
		require.NoError(t, err, d.String())
		assert.Equal(t, want, got, d.String())
	}
	for _, d := range []*metadata.Definition{img.dead, img.count} {
		_, err := res.Mapping.Lookup(d)
		assert.ErrorIs(t, err, ErrTokenNotFound, d.String())
	}

	// App.Point moved from TypeDef 3 (coded 0x0C) to TypeDef 2 (coded 0x08).
	assert.Equal(t, []byte{0x06, 0x11, 0x08}, res.Blobs[img.origin.Handle()])
	assert.Equal(t, []byte{0x20, 0x01, 0x01, 0x11, 0x08}, res.Blobs[img.run.Handle()])
	assert.Equal(t, []byte{0x15, 0x12, 0x05, 0x01, 0x11, 0x08}, res.Blobs[img.spec.Handle()])
	// Untouched references and trailing bytes survive.
	assert.Equal(t, img.items.Signature(), res.Blobs[img.items.Handle()])
	assert.NotContains(t, res.Blobs, img.count.Handle())
	assert.NotContains(t, res.Blobs, img.module.Handle())

	assert.Equal(t, Stats{Registered: 7, Patched: 3, Unchanged: 1}, res.Stats)
	assert.Empty(t, res.Failures)

	// The arena keeps the loaded blobs.
	assert.Equal(t, []byte{0x06, 0x11, 0x0C}, img.origin.Signature())
}

func TestRebuildIdentity(t *testing.T) {
	img := buildImage(t)
	res, err := Rebuild(context.Background(), img.arena, Options{})
	require.NoError(t, err)
	for _, d := range img.arena.Definitions() {
		if d.Signature() == nil {
			continue
		}
		assert.Equal(t, d.Signature(), res.Blobs[d.Handle()], d.String())
	}
	assert.Zero(t, res.Stats.Patched)
}

func TestRebuildStaleReference(t *testing.T) {
	img := buildImage(t)
	require.NoError(t, img.arena.Remove(img.point.Handle()))

	_, err := Rebuild(context.Background(), img.arena, Options{Workers: 1})
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRebuildBestEffort(t *testing.T) {
	img := buildImage(t)
	require.NoError(t, img.arena.Remove(img.point.Handle()))

	res, err := Rebuild(context.Background(), img.arena, Options{Decode: blob.Options{Mode: blob.ModeBestEffort}})
	require.NoError(t, err)

	// Origin, Move and the TypeSpec all reference the removed type.
	assert.Equal(t, 3, res.Stats.Failed)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, img.origin.Signature(), res.Blobs[img.origin.Handle()])
	assert.Contains(t, res.Failures[0].Msg, "App.Point")
}

func TestRebuildMalformedBlob(t *testing.T) {
	img := buildImage(t)
	img.count.SetSignature([]byte{0x06})

	_, err := Rebuild(context.Background(), img.arena, Options{})
	var fe *blob.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Offset)
	assert.ErrorIs(t, err, blob.ErrStreamEOF)
}

func TestRebuildCanceled(t *testing.T) {
	img := buildImage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Rebuild(ctx, img.arena, Options{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssignTokensOrder(t *testing.T) {
	a := metadata.NewArena()
	_, err := a.Add(metadata.NewToken(metadata.TableAssemblyRef, 7), metadata.DefinitionInfo{Name: "mscorlib"})
	require.NoError(t, err)
	_, err = a.Add(metadata.NewToken(metadata.TableModule, 1), metadata.DefinitionInfo{Name: "app.dll"})
	require.NoError(t, err)

	tm, err := AssignTokens(a, nil)
	require.NoError(t, err)
	entries := tm.Entries()
	require.Len(t, entries, 2)
	// Both land in the catch-all partition, Module before AssemblyRef.
	assert.Equal(t, metadata.Token(0x00000001), entries[0].Token)
	assert.Equal(t, metadata.Token(0x23000001), entries[1].Token)
}
