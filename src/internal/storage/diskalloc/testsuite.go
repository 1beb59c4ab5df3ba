package diskalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replayfs/replayfs/src/internal/pctx"
	"github.com/replayfs/replayfs/src/internal/replayerr"
)

// TestAllocator runs the behaviour every Allocator must share.
func TestAllocator(t *testing.T, newAllocator func(t testing.TB, opts ...Option) Allocator) {
	t.Run("DistinctNonZeroPages", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		a := newAllocator(t)
		seen := make(map[uint64]bool)
		for i := 0; i < 10; i++ {
			p, err := a.AllocPage(ctx)
			require.NoError(t, err)
			require.NotZero(t, p.Index)
			require.False(t, seen[p.Index], "page %d handed out twice", p.Index)
			seen[p.Index] = true
		}
		s, err := a.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(10), s.Allocated)
	})
	t.Run("ReuseFreed", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		a := newAllocator(t)
		p1, err := a.AllocPage(ctx)
		require.NoError(t, err)
		_, err = a.AllocPage(ctx)
		require.NoError(t, err)
		require.NoError(t, a.FreePage(ctx, p1))
		s, err := a.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, Stats{Allocated: 1, Free: 1, HighWater: 2}, s)
		p3, err := a.AllocPage(ctx)
		require.NoError(t, err)
		require.Equal(t, p1, p3)
	})
	t.Run("BadFree", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		a := newAllocator(t)
		require.True(t, replayerr.IsInvalid(a.FreePage(ctx, Page{Index: 0})))
		require.True(t, replayerr.IsInvalid(a.FreePage(ctx, Page{Index: 5})))
		p, err := a.AllocPage(ctx)
		require.NoError(t, err)
		require.NoError(t, a.FreePage(ctx, p))
		require.True(t, replayerr.IsInvalid(a.FreePage(ctx, p)))
	})
	t.Run("Exhaustion", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		a := newAllocator(t, WithMaxPages(2))
		p, err := a.AllocPage(ctx)
		require.NoError(t, err)
		_, err = a.AllocPage(ctx)
		require.NoError(t, err)
		_, err = a.AllocPage(ctx)
		require.True(t, replayerr.IsAllocation(err), "got %v", err)
		require.NoError(t, a.FreePage(ctx, p))
		_, err = a.AllocPage(ctx)
		require.NoError(t, err)
	})
	t.Run("PageSize", func(t *testing.T) {
		a := newAllocator(t, WithPageSize(512))
		require.Equal(t, int64(512), a.PageSize())
		p := Page{Index: 3}
		require.Equal(t, int64(1536), p.Location(a.PageSize()))
	})
}
