package metaindex

import (
	"context"
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

var bucketName = []byte("filemap_meta")

// InitBolt creates the index bucket in db.  It must run once before NewBoltIndex; running it again
// is harmless.
func InitBolt(db *bolt.DB) error {
	return replayerr.WrapIO(db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return errors.EnsureStack(err)
	}), "init meta index")
}

var _ Index = &BoltIndex{}

// BoltIndex is an Index stored in a bolt bucket.  A lookup result pins the read transaction it
// came from until its PageRef is released, so a caller holding a ref must not write to the same
// database from the same goroutine.
type BoltIndex struct {
	db   *bolt.DB
	pins diskalloc.PinCounter
}

// NewBoltIndex returns the index stored in db.  db must have been initialized with InitBolt.
func NewBoltIndex(db *bolt.DB) (*BoltIndex, error) {
	if err := db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketName) == nil {
			return replayerr.Invalidf("meta index not initialized in %s", db.Path())
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &BoltIndex{db: db}, nil
}

func encodeKey(k Key) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], k.ID1)
	binary.BigEndian.PutUint64(buf[8:], k.ID2)
	return buf[:]
}

func decodeKey(b []byte) Key {
	return Key{ID1: binary.BigEndian.Uint64(b[:8]), ID2: binary.BigEndian.Uint64(b[8:])}
}

func (x *BoltIndex) Insert(ctx context.Context, key Key, loc int64) error {
	err := x.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		k := encodeKey(key)
		if b.Get(k) != nil {
			return replayerr.Conflictf("key %v already indexed", key)
		}
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], uint64(loc))
		return errors.EnsureStack(b.Put(k, v[:]))
	})
	return replayerr.WrapIO(err, "insert into meta index")
}

func (x *BoltIndex) Lookup(ctx context.Context, key Key) (_ int64, _ *diskalloc.PageRef, _ bool, retErr error) {
	tx, err := x.db.Begin(false)
	if err != nil {
		return 0, nil, false, replayerr.WrapIO(err, "begin meta index lookup")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	v := tx.Bucket(bucketName).Get(encodeKey(key))
	if v == nil {
		return 0, nil, false, errors.EnsureStack(tx.Rollback())
	}
	if len(v) != 8 {
		return 0, nil, false, replayerr.WrapIO(errors.Errorf("corrupt location of %d bytes", len(v)), "meta index lookup")
	}
	loc := int64(binary.BigEndian.Uint64(v))
	return loc, diskalloc.NewPageRef(&x.pins, func() { _ = tx.Rollback() }), true, nil
}

func (x *BoltIndex) Walk(ctx context.Context, cb func(Key, int64) error) error {
	return x.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			if len(k) != 16 || len(v) != 8 {
				return replayerr.WrapIO(errors.Errorf("corrupt entry"), "walk meta index")
			}
			return cb(decodeKey(k), int64(binary.BigEndian.Uint64(v)))
		})
	})
}

// Pins exposes the count of unreleased lookup results.
func (x *BoltIndex) Pins() *diskalloc.PinCounter {
	return &x.pins
}
