package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
	"github.com/nebulastream/nebulastream-sub003/internal/pipeline"
)

var (
	_ pipeline.GraphCache = (*Disk)(nil)
	_ pipeline.GraphCache = (*Memory)(nil)
	_ pipeline.GraphCache = (*Tiered)(nil)
)

func sample(t *testing.T) *nir.Graph {
	t.Helper()
	b := nir.NewBuilder("sample", nir.I64)
	entry := b.Block(nir.I64)
	b.At(entry)
	b.RetValue(b.Add(b.Arg(entry, 0), b.ConstInt(nir.I64, 2)))
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func optimized(t *testing.T, in *nir.Graph) *nir.Graph {
	t.Helper()
	out, _, err := pipeline.Run(t.Context(), in, nil)
	require.NoError(t, err)
	return out
}

func TestDiskRoundTrip(t *testing.T) {
	c, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	in := sample(t)
	fp := "fp-1"

	_, ok, err := c.Get(in, fp)
	require.NoError(t, err)
	assert.False(t, ok)

	out := optimized(t, in)
	require.NoError(t, c.Put(in, fp, out))

	got, ok, err := c.Get(in, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, nir.String(out), nir.String(got))

	_, ok, err = c.Get(in, "fp-2")
	require.NoError(t, err)
	assert.False(t, ok, "a different fingerprint is a different entry")
}

func TestDiskLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenDir(dir)
	require.NoError(t, err)
	in := sample(t)
	require.NoError(t, c.Put(in, "fp", optimized(t, in)))

	entries, err := os.ReadDir(filepath.Join(dir, "graphs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	key, err := KeyFor(in, "fp")
	require.NoError(t, err)
	assert.Equal(t, key.String()+".mp", entries[0].Name())
}

func TestDiskCorruptEntry(t *testing.T) {
	c, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	in := sample(t)
	key, err := KeyFor(in, "fp")
	require.NoError(t, err)
	p := c.pathFor(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte{0xc1}, 0o600))

	_, ok, err := c.Get(in, "fp")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDiskDropAll(t *testing.T) {
	c, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	in := sample(t)
	require.NoError(t, c.Put(in, "fp", optimized(t, in)))
	require.NoError(t, c.DropAll())

	_, ok, err := c.Get(in, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.DirExists(t, c.Dir())
}

func TestOpenUsesXDGCacheHome(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", base)
	c, err := Open("nautc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "nautc"), c.Dir())
}

func TestKeyDependsOnGraphAndFingerprint(t *testing.T) {
	a := sample(t)
	b := sample(t)
	ka, err := KeyFor(a, "x")
	require.NoError(t, err)
	kb, err := KeyFor(b, "x")
	require.NoError(t, err)
	assert.Equal(t, ka, kb)

	b.Func.Name = "other"
	kb, err = KeyFor(b, "x")
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)

	kc, err := KeyFor(a, "y")
	require.NoError(t, err)
	assert.NotEqual(t, ka, kc)
}

func TestMemoryReplacesStaleEntry(t *testing.T) {
	m := NewMemory(4)
	in := sample(t)
	out := optimized(t, in)
	require.NoError(t, m.Put(in, "fp", out))

	got, ok, err := m.Get(in, "fp")
	require.NoError(t, err)
	require.True(t, ok)
	got.Blocks[0].Ops = nil
	again, _, _ := m.Get(in, "fp")
	assert.NotEmpty(t, again.Blocks[0].Ops, "callers receive copies")

	changed := sample(t)
	changed.Blocks[0].Ops[0].Const.Int = 3
	_, ok, err = m.Get(changed, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestTieredFillsMemoryFromDisk(t *testing.T) {
	disk, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	in := sample(t)
	require.NoError(t, disk.Put(in, "fp", optimized(t, in)))

	tiered := &Tiered{Mem: NewMemory(1), Disk: disk}
	_, ok, err := tiered.Get(in, "fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, tiered.Mem.Len())
}

func TestCompileAllWithDiskCache(t *testing.T) {
	disk, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	inputs := []pipeline.Input{{Graph: sample(t)}}

	first, err := pipeline.CompileAll(t.Context(), inputs, nil, disk, nil)
	require.NoError(t, err)
	require.NoError(t, first[0].Err)
	assert.False(t, first[0].Cached)

	second, err := pipeline.CompileAll(t.Context(), inputs, nil, disk, nil)
	require.NoError(t, err)
	assert.True(t, second[0].Cached)
	assert.Equal(t, nir.String(first[0].Graph), nir.String(second[0].Graph))
}
