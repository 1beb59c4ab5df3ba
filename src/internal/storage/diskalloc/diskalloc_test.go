package diskalloc

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestMemAllocator(t *testing.T) {
	TestAllocator(t, func(t testing.TB, opts ...Option) Allocator {
		return NewMemAllocator(opts...)
	})
}

func TestBoltAllocator(t *testing.T) {
	TestAllocator(t, func(t testing.TB, opts ...Option) Allocator {
		db, err := bolt.Open(filepath.Join(t.TempDir(), "alloc.db"), 0o600, nil)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, db.Close()) })
		a, err := NewBoltAllocator(db, opts...)
		require.NoError(t, err)
		return a
	})
}

func TestPageRef(t *testing.T) {
	var pins PinCounter
	var released int
	ref := NewPageRef(&pins, func() { released++ })
	require.Equal(t, int64(1), pins.Outstanding())
	ref.Release()
	ref.Release()
	require.Equal(t, 1, released)
	require.Zero(t, pins.Outstanding())

	var nilRef *PageRef
	nilRef.Release()
}

func TestPageRefConcurrentRelease(t *testing.T) {
	var pins PinCounter
	refs := make([]*PageRef, 100)
	for i := range refs {
		refs[i] = NewPageRef(&pins, nil)
	}
	var wg sync.WaitGroup
	for _, r := range refs {
		wg.Add(2)
		go func() { defer wg.Done(); r.Release() }()
		go func() { defer wg.Done(); r.Release() }()
	}
	wg.Wait()
	require.Zero(t, pins.Outstanding())
}
