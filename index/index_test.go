package index

import (
	"bytes"
	"os"
	"path"
	"sync"
	"testing"

	"github.com/jobala/rtstore/settings"
	"github.com/jobala/rtstore/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLifecycle(t *testing.T) {
	t.Run("a closed index reopens with its root and pages", func(t *testing.T) {
		opts := indexOptions(t)

		p, err := Create(opts)
		require.NoError(t, err)
		root := buildTree(t, p)
		require.NoError(t, p.Close())

		reopened, err := Open(Options{Path: opts.Path})
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = reopened.Close()
		})

		assert.Equal(t, root, reopened.Root())
		assert.Equal(t, 4, reopened.MaxEntries())
		assert.True(t, opts.Schema.Equal(reopened.Schema()))

		node, err := reopened.GetNode(root)
		require.NoError(t, err)
		assert.False(t, node.IsLeaf())
		assert.True(t, node.IsRoot())
		require.Equal(t, 2, node.Len())

		leaf, err := reopened.GetNode(node.Entry(0).Child)
		require.NoError(t, err)
		assert.Equal(t, root, leaf.ParentOffset())
		assert.Equal(t, Record{int32(1), "café"}, leaf.Entry(0).Record)
	})

	t.Run("create replaces an existing index", func(t *testing.T) {
		opts := indexOptions(t)

		p, err := Create(opts)
		require.NoError(t, err)
		buildTree(t, p)
		require.NoError(t, p.Close())

		p, err = Create(opts)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = p.Close()
		})

		size, err := p.Channel().Size()
		assert.NoError(t, err)
		assert.Equal(t, int64(0), size)
		assert.Equal(t, INVALID_OFFSET, p.Root())
	})

	t.Run("options must describe a usable index", func(t *testing.T) {
		opts := indexOptions(t)

		_, err := Create(Options{Schema: opts.Schema, MaxEntries: 4})
		assert.Error(t, err)

		opts.MaxEntries = 1
		_, err = Create(opts)
		assert.Error(t, err)
	})

	t.Run("a rejected create leaves the existing index intact", func(t *testing.T) {
		opts := indexOptions(t)

		p, err := Create(opts)
		require.NoError(t, err)
		root := buildTree(t, p)
		require.NoError(t, p.Close())

		before, err := os.Stat(opts.Path)
		require.NoError(t, err)

		bad := opts
		bad.MaxEntries = 1
		_, err = Create(bad)
		assert.Error(t, err)

		after, err := os.Stat(opts.Path)
		require.NoError(t, err)
		assert.Equal(t, before.Size(), after.Size())

		reopened, err := Open(Options{Path: opts.Path})
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = reopened.Close()
		})
		assert.Equal(t, root, reopened.Root())
	})

	t.Run("closing an unchanged index leaves its metadata alone", func(t *testing.T) {
		opts := indexOptions(t)

		p, err := Create(opts)
		require.NoError(t, err)
		buildTree(t, p)
		require.NoError(t, p.Close())

		reopened, err := Open(Options{Path: opts.Path})
		require.NoError(t, err)
		require.NoError(t, Inspect(&bytes.Buffer{}, reopened))

		require.NoError(t, os.Remove(MetaPath(opts.Path)))
		require.NoError(t, reopened.Close())

		_, err = os.Stat(MetaPath(opts.Path))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("closing after the root moved rewrites the metadata", func(t *testing.T) {
		opts := indexOptions(t)

		p, err := Create(opts)
		require.NoError(t, err)
		root := buildTree(t, p)
		require.NoError(t, p.Close())

		reopened, err := Open(Options{Path: opts.Path})
		require.NoError(t, err)
		require.NoError(t, reopened.Do(func() error {
			leaf := NewNode(reopened, true)
			if err := leaf.Save(); err != nil {
				return err
			}
			reopened.SetRoot(leaf.Offset())
			return nil
		}))
		require.NoError(t, reopened.Close())

		m, err := readMeta(MetaPath(opts.Path))
		require.NoError(t, err)
		assert.NotEqual(t, root, m.RootOffset)
		assert.Equal(t, m.RootOffset+int64(PageLen(4)+48), m.FileEnd)
	})

	t.Run("missing metadata is an io error", func(t *testing.T) {
		_, err := Open(Options{Path: path.Join(t.TempDir(), "missing.idx")})
		assert.ErrorIs(t, err, util.ErrIo)
	})
}

func TestIndexMetadata(t *testing.T) {
	created := func(t *testing.T) Options {
		opts := indexOptions(t)
		p, err := Create(opts)
		require.NoError(t, err)
		buildTree(t, p)
		require.NoError(t, p.Close())
		return opts
	}

	t.Run("a different fan-out is rejected", func(t *testing.T) {
		opts := created(t)

		_, err := Open(Options{Path: opts.Path, MaxEntries: 8})
		assert.ErrorIs(t, err, util.ErrCorruptPage)
	})

	t.Run("a different leaf schema is rejected", func(t *testing.T) {
		opts := created(t)
		other, err := NewSchema("", Field{Name: "id", Kind: INT64})
		require.NoError(t, err)

		_, err = Open(Options{Path: opts.Path, Schema: other})
		assert.ErrorIs(t, err, util.ErrCorruptPage)
	})

	t.Run("a damaged metadata file fails its checksum", func(t *testing.T) {
		opts := created(t)
		metaPath := MetaPath(opts.Path)

		buf, err := os.ReadFile(metaPath)
		require.NoError(t, err)
		buf[20] ^= 0xff
		require.NoError(t, os.WriteFile(metaPath, buf, 0644))

		_, err = Open(Options{Path: opts.Path})
		assert.ErrorIs(t, err, util.ErrCorruptPage)
	})

	t.Run("a truncated page file is rejected", func(t *testing.T) {
		opts := created(t)
		require.NoError(t, os.Truncate(opts.Path, 10))

		_, err := Open(Options{Path: opts.Path})
		assert.ErrorIs(t, err, util.ErrCorruptPage)
	})
}

func TestIndexLocking(t *testing.T) {
	t.Run("concurrent saves under the index lock get distinct pages", func(t *testing.T) {
		p := CreateParams(t, 4, 64, idSchema(t))

		var wg sync.WaitGroup
		offsets := map[int64]bool{}
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := p.Do(func() error {
					node := NewNode(p, false)
					if err := node.Save(); err != nil {
						return err
					}
					offsets[node.Offset()] = true
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Len(t, offsets, 8)
		assert.Equal(t, int64(8*PageLen(4)), p.Allocator().End())
	})
}

func TestInspect(t *testing.T) {
	t.Run("dumps the tree breadth first", func(t *testing.T) {
		opts := indexOptions(t)
		p, err := Create(opts)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = p.Close()
		})
		root := buildTree(t, p)

		var out bytes.Buffer
		require.NoError(t, Inspect(&out, p))

		lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
		require.Len(t, lines, 8)
		assert.Contains(t, string(lines[0]), "depth=0 internal parent=-1 entries=2")
		assert.Contains(t, out.String(), `[0] (0 1 0 1) [1 "café"]`)
		assert.Contains(t, out.String(), "depth=1 leaf parent=")
		assert.Equal(t, root, p.Root())
	})

	t.Run("an empty index says so", func(t *testing.T) {
		p := CreateParams(t, 4, 8, idSchema(t))

		var out bytes.Buffer
		require.NoError(t, Inspect(&out, p))
		assert.Equal(t, "empty index\n", out.String())
	})

	t.Run("stat summarizes the tree and file", func(t *testing.T) {
		opts := indexOptions(t)
		p, err := Create(opts)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = p.Close()
		})
		buildTree(t, p)

		stats, err := Stat(p)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Internal)
		assert.Equal(t, 2, stats.Leaves)
		assert.Equal(t, 3, stats.Records)
		assert.Equal(t, 2, stats.Depth)
		assert.Equal(t, 12, stats.RecordWidth)
		assert.Equal(t, PageLen(4), stats.PageLen)
		assert.Equal(t, 48, stats.LeafBlockLen)
		assert.Equal(t, stats.FileEnd, stats.FileSize)
	})
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := settings.Index{
		Path:       "places.idx",
		MaxEntries: 4,
		CacheSize:  8,
		Encoding:   "ISO-8859-1",
		Schema: []settings.Field{
			{Name: "id", Kind: "int32"},
			{Name: "name", Kind: "text", Width: 8},
		},
	}

	opts := OptionsFromConfig(cfg, nil)

	assert.Equal(t, "places.idx", opts.Path)
	assert.Equal(t, 4, opts.MaxEntries)
	assert.Equal(t, 8, opts.CacheSize)
	require.NotNil(t, opts.Schema)
	assert.Equal(t, []Field{{Name: "id", Kind: INT32}, {Name: "name", Kind: TEXT, Size: 8}}, opts.Schema.Fields)
	assert.True(t, opts.Schema.Equal(placeSchema(t)))
}

// buildTree saves a root with two leaves holding three records and returns
// the root offset.
func buildTree(t *testing.T, p *Params) int64 {
	t.Helper()

	var root int64
	err := p.Do(func() error {
		left, right := NewNode(p, true), NewNode(p, true)
		require.NoError(t, left.AddEntry(Entry{Bounds: NewEnvelope(0, 1, 0, 1), Record: Record{int32(1), "café"}}))
		require.NoError(t, left.AddEntry(Entry{Bounds: NewEnvelope(1, 2, 1, 2), Record: Record{int32(2), "bar"}}))
		require.NoError(t, right.AddEntry(Entry{Bounds: NewEnvelope(5, 6, 5, 6), Record: Record{int32(3), "pub"}}))
		require.NoError(t, left.Save())
		require.NoError(t, right.Save())

		parent := NewNode(p, false)
		leftBounds, _ := left.Bounds()
		rightBounds, _ := right.Bounds()
		require.NoError(t, parent.AddEntry(Entry{Bounds: leftBounds, Child: left.Offset()}))
		require.NoError(t, parent.AddEntry(Entry{Bounds: rightBounds, Child: right.Offset()}))
		require.NoError(t, parent.Save())
		parent.ReparentChildren()

		p.SetRoot(parent.Offset())
		root = parent.Offset()
		return p.Flush()
	})
	require.NoError(t, err)
	return root
}

func placeSchema(t *testing.T) *Schema {
	t.Helper()

	schema, err := NewSchema("", Field{Name: "id", Kind: INT32}, Field{Name: "name", Kind: TEXT, Size: 8})
	require.NoError(t, err)
	return schema
}

func indexOptions(t *testing.T) Options {
	t.Helper()

	return Options{
		Path:       path.Join(t.TempDir(), "places.idx"),
		MaxEntries: 4,
		CacheSize:  8,
		Schema:     placeSchema(t),
	}
}
