package diskalloc

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/replayfs/replayfs/src/internal/replayerr"
)

var _ Allocator = &MemAllocator{}

// MemAllocator is an Allocator that keeps its bookkeeping in memory.  The lowest freed page is
// reused first.
type MemAllocator struct {
	opts options

	mu        sync.Mutex
	next      uint64
	allocated uint64
	free      *btree.BTreeG[uint64]
}

// NewMemAllocator returns an empty MemAllocator.
func NewMemAllocator(opts ...Option) *MemAllocator {
	return &MemAllocator{
		opts: makeOptions(opts),
		next: 1,
		free: btree.NewG[uint64](8, func(a, b uint64) bool { return a < b }),
	}
}

func (a *MemAllocator) AllocPage(ctx context.Context) (Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opts.maxPages > 0 && a.allocated >= a.opts.maxPages {
		return Page{}, replayerr.Allocationf("all %d pages in use", a.opts.maxPages)
	}
	a.allocated++
	if idx, ok := a.free.DeleteMin(); ok {
		return Page{Index: idx}, nil
	}
	idx := a.next
	a.next++
	return Page{Index: idx}, nil
}

func (a *MemAllocator) FreePage(ctx context.Context, p Page) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p.Index == 0 || p.Index >= a.next {
		return replayerr.Invalidf("free of never allocated page %d", p.Index)
	}
	if _, dup := a.free.ReplaceOrInsert(p.Index); dup {
		return replayerr.Invalidf("double free of page %d", p.Index)
	}
	a.allocated--
	return nil
}

func (a *MemAllocator) PageSize() int64 {
	return a.opts.pageSize
}

func (a *MemAllocator) Stats(ctx context.Context) (Stats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Allocated: a.allocated,
		Free:      uint64(a.free.Len()),
		HighWater: a.next - 1,
	}, nil
}
