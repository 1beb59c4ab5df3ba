package rangetree

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

const memDegree = 32

type memTree struct {
	mu      sync.RWMutex
	entries *btree.BTreeG[Entry]
}

func newMemTree() *memTree {
	return &memTree{entries: btree.NewG[Entry](memDegree, func(a, b Entry) bool { return a.Offset < b.Offset })}
}

// floor returns the entry with the greatest offset not above addr.
func (t *memTree) floor(addr int64) (Entry, bool) {
	var (
		e  Entry
		ok bool
	)
	t.entries.DescendLessOrEqual(Entry{Range: Range{Offset: addr}}, func(item Entry) bool {
		e, ok = item, true
		return false
	})
	return e, ok
}

var _ Engine = &MemEngine{}

// MemEngine keeps trees in memory, one google/btree per tree.
type MemEngine struct {
	mu    sync.Mutex
	trees map[int64]*memTree
	pins  diskalloc.PinCounter
}

// NewMemEngine returns an engine with no trees.
func NewMemEngine() *MemEngine {
	return &MemEngine{trees: make(map[int64]*memTree)}
}

func (e *MemEngine) Create(ctx context.Context, alloc diskalloc.Allocator, page diskalloc.Page) (Tree, error) {
	loc := page.Location(alloc.PageSize())
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.trees[loc]; ok {
		return nil, replayerr.Invalidf("range tree already exists at %d", loc)
	}
	t := newMemTree()
	e.trees[loc] = t
	return &memHandle{e: e, loc: loc, t: t}, nil
}

func (e *MemEngine) Open(ctx context.Context, alloc diskalloc.Allocator, loc int64) (Tree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.trees[loc]
	if !ok {
		return nil, replayerr.NotFoundf("no range tree at %d", loc)
	}
	return &memHandle{e: e, loc: loc, t: t}, nil
}

func (e *MemEngine) Drop(ctx context.Context, loc int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.trees[loc]; !ok {
		return replayerr.NotFoundf("no range tree at %d", loc)
	}
	delete(e.trees, loc)
	return nil
}

// Pins exposes the count of unreleased lookup results.
func (e *MemEngine) Pins() *diskalloc.PinCounter {
	return &e.pins
}

type memHandle struct {
	e      *MemEngine
	loc    int64
	t      *memTree
	closed bool
}

func (h *memHandle) Location() int64 { return h.loc }

func (h *memHandle) InsertOrUpdate(ctx context.Context, r Range, v Value) error {
	if h.closed {
		return errClosed
	}
	if err := r.Validate(); err != nil {
		return err
	}
	t := h.t
	t.mu.Lock()
	defer t.mu.Unlock()
	var hit []Entry
	if prev, ok := t.floor(r.Offset); ok && prev.Offset < r.Offset && overlaps(prev, r) {
		hit = append(hit, prev)
	}
	t.entries.AscendRange(Entry{Range: Range{Offset: r.Offset}}, Entry{Range: Range{Offset: r.End()}}, func(item Entry) bool {
		hit = append(hit, item)
		return true
	})
	for _, old := range hit {
		t.entries.Delete(old)
		for _, rem := range carve(old, r) {
			t.entries.ReplaceOrInsert(rem)
		}
	}
	t.entries.ReplaceOrInsert(Entry{Range: r, Value: v})
	return nil
}

func (h *memHandle) LookupCovering(ctx context.Context, addr int64) (Range, Value, *diskalloc.PageRef, error) {
	if h.closed {
		return Range{}, Value{}, nil, errClosed
	}
	h.t.mu.RLock()
	defer h.t.mu.RUnlock()
	e, ok := h.t.floor(addr)
	if !ok || !e.Contains(addr) {
		return Range{}, Value{}, nil, replayerr.NotFoundf("no entry covers %d", addr)
	}
	return e.Range, e.Value, diskalloc.NewPageRef(&h.e.pins, nil), nil
}

func (h *memHandle) Walk(ctx context.Context, cb func(Range, Value) error) error {
	if h.closed {
		return errClosed
	}
	h.t.mu.RLock()
	defer h.t.mu.RUnlock()
	var err error
	h.t.entries.Ascend(func(e Entry) bool {
		err = cb(e.Range, e.Value)
		return err == nil
	})
	return errors.EnsureStack(err)
}

func (h *memHandle) Close(ctx context.Context) error {
	h.closed = true
	return nil
}
