// Package metaindex is the process-wide index from a 128-bit file key to the location of that
// file's range tree.  Keys are unique: the first Insert for a key wins and every later Insert for
// the same key is an ErrConflict.  Entries are never removed.
package metaindex

import (
	"context"
	"fmt"

	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

// Key is a 128-bit index key.
type Key struct {
	ID1, ID2 uint64
}

// Less orders keys by ID1, then ID2.
func (k Key) Less(o Key) bool {
	if k.ID1 != o.ID1 {
		return k.ID1 < o.ID1
	}
	return k.ID2 < o.ID2
}

func (k Key) String() string {
	return fmt.Sprintf("{%d, %d}", k.ID1, k.ID2)
}

// Index maps keys to range tree locations.
type Index interface {
	// Insert adds key -> loc.  It is an ErrConflict if key is already present.
	Insert(ctx context.Context, key Key, loc int64) error
	// Lookup returns the location stored for key.  When found is true the caller owns ref and
	// must release it; when found is false ref is nil.
	Lookup(ctx context.Context, key Key) (loc int64, ref *diskalloc.PageRef, found bool, err error)
	// Walk calls cb for every entry in key order.
	Walk(ctx context.Context, cb func(key Key, loc int64) error) error
}
