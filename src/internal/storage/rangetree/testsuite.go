package rangetree

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/replayfs/replayfs/src/internal/pctx"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

// PinnedEngine is an Engine that can report leaked lookup results.
type PinnedEngine interface {
	Engine
	Pins() *diskalloc.PinCounter
}

// Entries collects every entry of t in offset order.
func Entries(t testing.TB, tree Tree) []Entry {
	var out []Entry
	require.NoError(t, tree.Walk(pctx.TestContext(t), func(r Range, v Value) error {
		out = append(out, Entry{Range: r, Value: v})
		return nil
	}))
	return out
}

func val(id int64) Value {
	return Value{UniqueID: id, PID: int32(100 + id), Syscall: 1, Kind: 'w'}
}

// TestEngine runs the behaviour every Engine must share.
func TestEngine(t *testing.T, newEngine func(t testing.TB) PinnedEngine) {
	newTree := func(t *testing.T) (PinnedEngine, Tree) {
		ctx := pctx.TestContext(t)
		e := newEngine(t)
		alloc := diskalloc.NewMemAllocator()
		p, err := alloc.AllocPage(ctx)
		require.NoError(t, err)
		tree, err := e.Create(ctx, alloc, p)
		require.NoError(t, err)
		t.Cleanup(func() { require.Zero(t, e.Pins().Outstanding(), "leaked page refs") })
		return e, tree
	}

	t.Run("CoveringLookup", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		_, tree := newTree(t)
		require.NoError(t, tree.InsertOrUpdate(ctx, Range{Offset: 10, Size: 5}, val(1)))
		require.NoError(t, tree.InsertOrUpdate(ctx, Range{Offset: 20, Size: 5}, val(2)))
		for _, addr := range []int64{10, 12, 14} {
			r, v, ref, err := tree.LookupCovering(ctx, addr)
			require.NoError(t, err)
			require.Equal(t, Range{Offset: 10, Size: 5}, r)
			require.Equal(t, val(1), v)
			ref.Release()
		}
		for _, addr := range []int64{0, 9, 15, 19, 25, 1 << 40} {
			_, _, ref, err := tree.LookupCovering(ctx, addr)
			require.True(t, replayerr.IsNotFound(err), "addr %d: got %v", addr, err)
			require.Nil(t, ref)
		}
	})
	t.Run("Empty", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		_, tree := newTree(t)
		_, _, _, err := tree.LookupCovering(ctx, 0)
		require.True(t, replayerr.IsNotFound(err), "got %v", err)
		require.Empty(t, Entries(t, tree))
	})
	t.Run("InvalidRange", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		_, tree := newTree(t)
		for _, r := range []Range{{Offset: 0, Size: 0}, {Offset: 5, Size: -1}, {Offset: 1<<63 - 4, Size: 8}} {
			require.True(t, replayerr.IsInvalid(tree.InsertOrUpdate(ctx, r, val(1))), "range %v", r)
		}
	})
	t.Run("SplitOverlaps", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		_, tree := newTree(t)
		require.NoError(t, tree.InsertOrUpdate(ctx, Range{Offset: 0, Size: 100}, val(1)))
		require.NoError(t, tree.InsertOrUpdate(ctx, Range{Offset: 40, Size: 20}, val(2)))
		require.NoError(t, tree.InsertOrUpdate(ctx, Range{Offset: 90, Size: 20}, val(3)))
		left, right := val(1), val(1)
		right.BufferOffset = 60
		want := []Entry{
			{Range{Offset: 0, Size: 40}, left},
			{Range{Offset: 40, Size: 20}, val(2)},
			{Range{Offset: 60, Size: 30}, right},
			{Range{Offset: 90, Size: 20}, val(3)},
		}
		require.Empty(t, cmp.Diff(want, Entries(t, tree)))
		// Covering all of it leaves one entry.
		require.NoError(t, tree.InsertOrUpdate(ctx, Range{Offset: 0, Size: 110}, val(4)))
		require.Empty(t, cmp.Diff([]Entry{{Range{Offset: 0, Size: 110}, val(4)}}, Entries(t, tree)))
	})
	t.Run("Reopen", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		e := newEngine(t)
		alloc := diskalloc.NewMemAllocator()
		p, err := alloc.AllocPage(ctx)
		require.NoError(t, err)
		tree, err := e.Create(ctx, alloc, p)
		require.NoError(t, err)
		require.Equal(t, p.Location(alloc.PageSize()), tree.Location())
		require.NoError(t, tree.InsertOrUpdate(ctx, Range{Offset: 7, Size: 3}, val(9)))
		require.NoError(t, tree.Close(ctx))
		require.True(t, replayerr.IsInvalid(tree.InsertOrUpdate(ctx, Range{Offset: 0, Size: 1}, val(1))))

		again, err := e.Open(ctx, alloc, tree.Location())
		require.NoError(t, err)
		require.Equal(t, []Entry{{Range{Offset: 7, Size: 3}, val(9)}}, Entries(t, again))
		require.NoError(t, again.Close(ctx))

		_, err = e.Create(ctx, alloc, p)
		require.Error(t, err, "a second tree at the same page")
	})
	t.Run("Drop", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		e := newEngine(t)
		alloc := diskalloc.NewMemAllocator()
		p, err := alloc.AllocPage(ctx)
		require.NoError(t, err)
		tree, err := e.Create(ctx, alloc, p)
		require.NoError(t, err)
		require.NoError(t, tree.Close(ctx))
		require.NoError(t, e.Drop(ctx, tree.Location()))
		_, err = e.Open(ctx, alloc, tree.Location())
		require.True(t, replayerr.IsNotFound(err), "got %v", err)
		require.True(t, replayerr.IsNotFound(e.Drop(ctx, tree.Location())))
		// The page can host a new tree once the old one is gone.
		tree, err = e.Create(ctx, alloc, p)
		require.NoError(t, err)
		require.NoError(t, tree.Close(ctx))
	})
	t.Run("MatchesByteModel", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		_, tree := newTree(t)
		const span = 256
		// model[i] is the id that last wrote byte i and where i sat in that write.
		type cell struct {
			id, pos int64
			set     bool
		}
		var model [span]cell
		rng := rand.New(rand.NewSource(1))
		for id := int64(1); id <= 200; id++ {
			off := rng.Int63n(span - 1)
			size := 1 + rng.Int63n(min(32, span-off))
			require.NoError(t, tree.InsertOrUpdate(ctx, Range{Offset: off, Size: size}, val(id)))
			for i := off; i < off+size; i++ {
				model[i] = cell{id: id, pos: i - off, set: true}
			}
		}
		var prevEnd int64 = -1
		for _, e := range Entries(t, tree) {
			require.GreaterOrEqual(t, e.Offset, prevEnd, "entries overlap")
			prevEnd = e.End()
		}
		for addr := int64(0); addr < span; addr++ {
			r, v, ref, err := tree.LookupCovering(ctx, addr)
			if !model[addr].set {
				require.True(t, replayerr.IsNotFound(err), "addr %d: got %v", addr, err)
				continue
			}
			require.NoError(t, err)
			require.Equal(t, model[addr].id, v.UniqueID, "addr %d", addr)
			require.Equal(t, model[addr].pos, v.BufferOffset+addr-r.Offset, "addr %d", addr)
			ref.Release()
		}
	})
}
