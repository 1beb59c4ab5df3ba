package rangetree

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/pctx"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

func TestMemEngine(t *testing.T) {
	TestEngine(t, func(t testing.TB) PinnedEngine {
		return NewMemEngine()
	})
}

func openDB(t testing.TB) *bolt.DB {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "trees.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func newBoltEngine(t testing.TB) *BoltEngine {
	db := openDB(t)
	require.NoError(t, InitBolt(db))
	e, err := NewBoltEngine(db)
	require.NoError(t, err)
	return e
}

func TestBoltEngine(t *testing.T) {
	TestEngine(t, func(t testing.TB) PinnedEngine {
		return newBoltEngine(t)
	})
}

func TestBoltEngineRequiresInit(t *testing.T) {
	_, err := NewBoltEngine(openDB(t))
	require.True(t, replayerr.IsInvalid(err), "got %v", err)
}

func TestBoltChecksum(t *testing.T) {
	ctx := pctx.TestContext(t)
	e := newBoltEngine(t)
	alloc := diskalloc.NewMemAllocator()
	p, err := alloc.AllocPage(ctx)
	require.NoError(t, err)
	tree, err := e.Create(ctx, alloc, p)
	require.NoError(t, err)
	require.NoError(t, tree.InsertOrUpdate(ctx, Range{Offset: 4, Size: 4}, val(1)))

	require.NoError(t, e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName).Bucket(encodeLocation(tree.Location()))
		v := append([]byte(nil), b.Get(encodeOffset(4))...)
		v[8] ^= 0xff
		return errors.EnsureStack(b.Put(encodeOffset(4), v))
	}))
	_, _, ref, err := tree.LookupCovering(ctx, 5)
	require.True(t, replayerr.IsIO(err), "got %v", err)
	require.Nil(t, ref)
	require.Zero(t, e.Pins().Outstanding())
}

func TestOffsetEncodingOrder(t *testing.T) {
	offs := []int64{-1 << 63, -5, -1, 0, 1, 4096, 1<<63 - 1}
	for i, off := range offs {
		require.Equal(t, off, decodeOffset(encodeOffset(off)))
		if i > 0 {
			require.Less(t, string(encodeOffset(offs[i-1])), string(encodeOffset(off)))
		}
	}
}

func TestCarve(t *testing.T) {
	old := Entry{Range{Offset: 10, Size: 20}, Value{UniqueID: 1, BufferOffset: 5}}
	tests := []struct {
		name string
		r    Range
		want []Entry
	}{
		{"covers", Range{Offset: 0, Size: 100}, nil},
		{"exact", Range{Offset: 10, Size: 20}, nil},
		{"left", Range{Offset: 0, Size: 15}, []Entry{
			{Range{Offset: 15, Size: 15}, Value{UniqueID: 1, BufferOffset: 10}},
		}},
		{"right", Range{Offset: 25, Size: 10}, []Entry{
			{Range{Offset: 10, Size: 15}, Value{UniqueID: 1, BufferOffset: 5}},
		}},
		{"middle", Range{Offset: 12, Size: 3}, []Entry{
			{Range{Offset: 10, Size: 2}, Value{UniqueID: 1, BufferOffset: 5}},
			{Range{Offset: 15, Size: 15}, Value{UniqueID: 1, BufferOffset: 10}},
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if diff := cmp.Diff(test.want, carve(old, test.r)); diff != "" {
				t.Errorf("carve (-want +got):\n%s", diff)
			}
		})
	}
}
