package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replayfs/replayfs/src/internal/pctx"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
	"github.com/replayfs/replayfs/src/internal/storage/metaindex"
	"github.com/replayfs/replayfs/src/internal/storage/rangetree"
)

func TestOpenPersistsID(t *testing.T) {
	ctx := pctx.TestContext(t)
	path := filepath.Join(t.TempDir(), "nested", "filemap.db")
	s, err := Open(ctx, path, WithNoSync())
	require.NoError(t, err)
	id := s.ID()
	require.Equal(t, path, s.Path())
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()
	require.Equal(t, id, s.ID())
}

func TestOpenWiresComponents(t *testing.T) {
	ctx := pctx.TestContext(t)
	path := filepath.Join(t.TempDir(), "filemap.db")
	s, err := Open(ctx, path, WithNoSync(), WithAllocatorOptions(diskalloc.WithPageSize(512)))
	require.NoError(t, err)

	require.Equal(t, int64(512), s.Allocator().PageSize())
	p, err := s.Allocator().AllocPage(ctx)
	require.NoError(t, err)
	tree, err := s.Engine().Create(ctx, s.Allocator(), p)
	require.NoError(t, err)
	require.NoError(t, tree.InsertOrUpdate(ctx, rangetree.Range{Offset: 0, Size: 8}, rangetree.Value{UniqueID: 3}))
	require.NoError(t, s.Index().Insert(ctx, metaindex.Key{ID1: 1, ID2: 2}, tree.Location()))
	require.NoError(t, tree.Close(ctx))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, WithAllocatorOptions(diskalloc.WithPageSize(512)))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()
	loc, ref, found, err := s.Index().Lookup(ctx, metaindex.Key{ID1: 1, ID2: 2})
	require.NoError(t, err)
	require.True(t, found)
	ref.Release()
	tree, err = s.Engine().Open(ctx, s.Allocator(), loc)
	require.NoError(t, err)
	_, v, ref, err := tree.LookupCovering(ctx, 5)
	require.NoError(t, err)
	ref.Release()
	require.Equal(t, int64(3), v.UniqueID)
	stats, err := s.Allocator().Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.Allocated)
}
