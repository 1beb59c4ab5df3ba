package rangetree

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

var bucketName = []byte("rangetrees")

// InitBolt creates the bucket that holds all trees.  Running it again is harmless.
func InitBolt(db *bolt.DB) error {
	return replayerr.WrapIO(db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return errors.EnsureStack(err)
	}), "init range trees")
}

var _ Engine = &BoltEngine{}

// BoltEngine stores each tree as a nested bolt bucket named by its location.  Keys are entry
// offsets and values carry the size, the Value and a checksum.
//
// A LookupCovering result holds a read transaction until its PageRef is released, so it must be
// released before the same goroutine writes to the database.
type BoltEngine struct {
	db   *bolt.DB
	pins diskalloc.PinCounter
}

// NewBoltEngine returns the engine stored in db, which must have been initialized with InitBolt.
func NewBoltEngine(db *bolt.DB) (*BoltEngine, error) {
	if err := db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketName) == nil {
			return replayerr.Invalidf("range trees not initialized in %s", db.Path())
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &BoltEngine{db: db}, nil
}

func (e *BoltEngine) Create(ctx context.Context, alloc diskalloc.Allocator, page diskalloc.Page) (Tree, error) {
	loc := page.Location(alloc.PageSize())
	err := e.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.Bucket(bucketName).CreateBucket(encodeLocation(loc))
		if errors.Is(err, bolt.ErrBucketExists) {
			return replayerr.Invalidf("range tree already exists at %d", loc)
		}
		return errors.EnsureStack(err)
	})
	if err != nil {
		return nil, replayerr.WrapIO(err, "create range tree")
	}
	return &boltTree{e: e, loc: loc}, nil
}

func (e *BoltEngine) Open(ctx context.Context, alloc diskalloc.Allocator, loc int64) (Tree, error) {
	err := e.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketName).Bucket(encodeLocation(loc)) == nil {
			return replayerr.NotFoundf("no range tree at %d", loc)
		}
		return nil
	})
	if err != nil {
		return nil, replayerr.WrapIO(err, "open range tree")
	}
	return &boltTree{e: e, loc: loc}, nil
}

func (e *BoltEngine) Drop(ctx context.Context, loc int64) error {
	err := e.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketName).DeleteBucket(encodeLocation(loc))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return replayerr.NotFoundf("no range tree at %d", loc)
		}
		return errors.EnsureStack(err)
	})
	return replayerr.WrapIO(err, "drop range tree")
}

// Pins exposes the count of unreleased lookup results.
func (e *BoltEngine) Pins() *diskalloc.PinCounter {
	return &e.pins
}

type boltTree struct {
	e      *BoltEngine
	loc    int64
	closed bool
}

func (t *boltTree) Location() int64 { return t.loc }

func (t *boltTree) bucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket(bucketName).Bucket(encodeLocation(t.loc))
	if b == nil {
		return nil, replayerr.NotFoundf("range tree at %d was dropped", t.loc)
	}
	return b, nil
}

// floor positions c on the entry with the greatest offset not above addr.
func floor(c *bolt.Cursor, addr int64) (k, v []byte) {
	k, v = c.Seek(encodeOffset(addr))
	switch {
	case k == nil:
		return c.Last()
	case decodeOffset(k) == addr:
		return k, v
	default:
		return c.Prev()
	}
}

func (t *boltTree) InsertOrUpdate(ctx context.Context, r Range, v Value) error {
	if t.closed {
		return errClosed
	}
	if err := r.Validate(); err != nil {
		return err
	}
	err := t.e.db.Update(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		var hit []Entry
		c := b.Cursor()
		if k, val := floor(c, r.Offset); k != nil && decodeOffset(k) < r.Offset {
			prev, err := decodeEntry(k, val)
			if err != nil {
				return err
			}
			if overlaps(prev, r) {
				hit = append(hit, prev)
			}
		}
		for k, val := c.Seek(encodeOffset(r.Offset)); k != nil && decodeOffset(k) < r.End(); k, val = c.Next() {
			e, err := decodeEntry(k, val)
			if err != nil {
				return err
			}
			hit = append(hit, e)
		}
		for _, old := range hit {
			if err := b.Delete(encodeOffset(old.Offset)); err != nil {
				return errors.EnsureStack(err)
			}
			for _, rem := range carve(old, r) {
				if err := b.Put(encodeOffset(rem.Offset), encodeValue(rem.Size, rem.Value)); err != nil {
					return errors.EnsureStack(err)
				}
			}
		}
		return errors.EnsureStack(b.Put(encodeOffset(r.Offset), encodeValue(r.Size, v)))
	})
	return replayerr.WrapIO(err, "insert range")
}

func (t *boltTree) LookupCovering(ctx context.Context, addr int64) (_ Range, _ Value, _ *diskalloc.PageRef, retErr error) {
	if t.closed {
		return Range{}, Value{}, nil, errClosed
	}
	tx, err := t.e.db.Begin(false)
	if err != nil {
		return Range{}, Value{}, nil, replayerr.WrapIO(err, "begin range lookup")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	b, err := t.bucket(tx)
	if err != nil {
		return Range{}, Value{}, nil, err
	}
	k, val := floor(b.Cursor(), addr)
	if k == nil {
		return Range{}, Value{}, nil, replayerr.NotFoundf("no entry covers %d", addr)
	}
	e, err := decodeEntry(k, val)
	if err != nil {
		return Range{}, Value{}, nil, err
	}
	if !e.Contains(addr) {
		return Range{}, Value{}, nil, replayerr.NotFoundf("no entry covers %d", addr)
	}
	return e.Range, e.Value, diskalloc.NewPageRef(&t.e.pins, func() { _ = tx.Rollback() }), nil
}

func (t *boltTree) Walk(ctx context.Context, cb func(Range, Value) error) error {
	if t.closed {
		return errClosed
	}
	return t.e.db.View(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, val []byte) error {
			e, err := decodeEntry(k, val)
			if err != nil {
				return err
			}
			return cb(e.Range, e.Value)
		})
	})
}

func (t *boltTree) Close(ctx context.Context) error {
	t.closed = true
	return nil
}
