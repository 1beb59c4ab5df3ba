package metaindex

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

type entry struct {
	key Key
	loc int64
}

var _ Index = &MemIndex{}

// MemIndex is an Index held in memory.
type MemIndex struct {
	mu      sync.RWMutex
	entries *btree.BTreeG[entry]
	pins    diskalloc.PinCounter
}

// NewMemIndex returns an empty MemIndex.
func NewMemIndex() *MemIndex {
	return &MemIndex{
		entries: btree.NewG[entry](16, func(a, b entry) bool { return a.key.Less(b.key) }),
	}
}

func (m *MemIndex) Insert(ctx context.Context, key Key, loc int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries.Has(entry{key: key}) {
		return replayerr.Conflictf("key %v already indexed", key)
	}
	m.entries.ReplaceOrInsert(entry{key: key, loc: loc})
	return nil
}

func (m *MemIndex) Lookup(ctx context.Context, key Key) (int64, *diskalloc.PageRef, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries.Get(entry{key: key})
	if !ok {
		return 0, nil, false, nil
	}
	return e.loc, diskalloc.NewPageRef(&m.pins, nil), true, nil
}

func (m *MemIndex) Walk(ctx context.Context, cb func(Key, int64) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var err error
	m.entries.Ascend(func(e entry) bool {
		err = cb(e.key, e.loc)
		return err == nil
	})
	return errors.EnsureStack(err)
}

// Pins exposes the count of unreleased lookup results.
func (m *MemIndex) Pins() *diskalloc.PinCounter {
	return &m.pins
}
