package diskalloc

import (
	"context"
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/replayerr"
)

var (
	bucketName   = []byte("diskalloc")
	freeBucket   = []byte("free")
	nextKey      = []byte("next")
	allocatedKey = []byte("allocated")
)

var _ Allocator = &BoltAllocator{}

// BoltAllocator is an Allocator whose bookkeeping lives in a bolt database, so page ownership
// survives restarts along with the trees stored in those pages.
type BoltAllocator struct {
	db   *bolt.DB
	opts options
}

// NewBoltAllocator returns an allocator backed by db, creating its bucket if needed.
func NewBoltAllocator(db *bolt.DB, opts ...Option) (*BoltAllocator, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return errors.EnsureStack(err)
		}
		_, err = b.CreateBucketIfNotExists(freeBucket)
		return errors.EnsureStack(err)
	}); err != nil {
		return nil, replayerr.WrapIO(err, "init page allocator")
	}
	return &BoltAllocator{db: db, opts: makeOptions(opts)}, nil
}

func (a *BoltAllocator) AllocPage(ctx context.Context) (Page, error) {
	var p Page
	err := a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		allocated := getUint64(b, allocatedKey)
		if a.opts.maxPages > 0 && allocated >= a.opts.maxPages {
			return replayerr.Allocationf("all %d pages in use", a.opts.maxPages)
		}
		free := b.Bucket(freeBucket)
		if k, _ := free.Cursor().First(); k != nil {
			p.Index = binary.BigEndian.Uint64(k)
			if err := free.Delete(k); err != nil {
				return errors.EnsureStack(err)
			}
		} else {
			next := getUint64(b, nextKey)
			if next == 0 {
				next = 1
			}
			p.Index = next
			if err := putUint64(b, nextKey, next+1); err != nil {
				return err
			}
		}
		return putUint64(b, allocatedKey, allocated+1)
	})
	if err != nil {
		return Page{}, replayerr.WrapIO(err, "allocate page")
	}
	return p, nil
}

func (a *BoltAllocator) FreePage(ctx context.Context, p Page) error {
	err := a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if p.Index == 0 || p.Index >= getUint64(b, nextKey) {
			return replayerr.Invalidf("free of never allocated page %d", p.Index)
		}
		free := b.Bucket(freeBucket)
		k := uint64Bytes(p.Index)
		if free.Get(k) != nil {
			return replayerr.Invalidf("double free of page %d", p.Index)
		}
		if err := free.Put(k, []byte{}); err != nil {
			return errors.EnsureStack(err)
		}
		return putUint64(b, allocatedKey, getUint64(b, allocatedKey)-1)
	})
	return replayerr.WrapIO(err, "free page")
}

func (a *BoltAllocator) PageSize() int64 {
	return a.opts.pageSize
}

func (a *BoltAllocator) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		s.Allocated = getUint64(b, allocatedKey)
		s.Free = uint64(b.Bucket(freeBucket).Stats().KeyN)
		if next := getUint64(b, nextKey); next > 0 {
			s.HighWater = next - 1
		}
		return nil
	})
	return s, replayerr.WrapIO(err, "page allocator stats")
}

func uint64Bytes(x uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], x)
	return buf[:]
}

func getUint64(b *bolt.Bucket, key []byte) uint64 {
	v := b.Get(key)
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func putUint64(b *bolt.Bucket, key []byte, x uint64) error {
	return errors.EnsureStack(b.Put(key, uint64Bytes(x)))
}
