package metaindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replayfs/replayfs/src/internal/pctx"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

// PinnedIndex is an Index that can report leaked lookup results.
type PinnedIndex interface {
	Index
	Pins() *diskalloc.PinCounter
}

// TestIndex runs the behaviour every Index must share.
func TestIndex(t *testing.T, newIndex func(t testing.TB) PinnedIndex) {
	t.Run("InsertLookup", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		x := newIndex(t)
		k := Key{ID1: 1234, ID2: 2049}
		require.NoError(t, x.Insert(ctx, k, 8192))
		loc, ref, found, err := x.Lookup(ctx, k)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, int64(8192), loc)
		require.Equal(t, int64(1), x.Pins().Outstanding())
		ref.Release()
		require.Zero(t, x.Pins().Outstanding())
	})
	t.Run("Missing", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		x := newIndex(t)
		require.NoError(t, x.Insert(ctx, Key{ID1: 1, ID2: 1}, 4096))
		_, ref, found, err := x.Lookup(ctx, Key{ID1: 1, ID2: 2})
		require.NoError(t, err)
		require.False(t, found)
		require.Nil(t, ref)
		require.Zero(t, x.Pins().Outstanding())
	})
	t.Run("Conflict", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		x := newIndex(t)
		k := Key{ID1: 7, ID2: 7}
		require.NoError(t, x.Insert(ctx, k, 4096))
		err := x.Insert(ctx, k, 8192)
		require.True(t, replayerr.IsConflict(err), "got %v", err)
		loc, ref, found, err := x.Lookup(ctx, k)
		require.NoError(t, err)
		defer ref.Release()
		require.True(t, found)
		require.Equal(t, int64(4096), loc, "the first insert must win")
	})
	t.Run("Walk", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		x := newIndex(t)
		keys := []Key{{ID1: 2, ID2: 0}, {ID1: 1, ID2: 9}, {ID1: 1, ID2: 3}}
		for i, k := range keys {
			require.NoError(t, x.Insert(ctx, k, int64(i+1)*4096))
		}
		var got []Key
		require.NoError(t, x.Walk(ctx, func(k Key, _ int64) error {
			got = append(got, k)
			return nil
		}))
		require.Equal(t, []Key{{ID1: 1, ID2: 3}, {ID1: 1, ID2: 9}, {ID1: 2, ID2: 0}}, got)
	})
}
