// Package boltstore opens the bolt database that holds a filemap store: the page allocator's
// bookkeeping, the meta index and the range trees.  Open initializes every bucket on first use,
// so the storage packages' constructors can assume they exist.
package boltstore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/log"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
	"github.com/replayfs/replayfs/src/internal/storage/metaindex"
	"github.com/replayfs/replayfs/src/internal/storage/rangetree"
)

const perm = 0o600

var (
	storeBucket = []byte("store")
	idKey       = []byte("id")
)

type options struct {
	timeout   time.Duration
	noSync    bool
	allocOpts []diskalloc.Option
}

// Option configures Open.
type Option func(*options)

// WithTimeout bounds how long Open waits for the database's file lock.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithNoSync skips fsync after each commit.  Only for tests and scratch stores.
func WithNoSync() Option {
	return func(o *options) { o.noSync = true }
}

// WithAllocatorOptions configures the page allocator.
func WithAllocatorOptions(opts ...diskalloc.Option) Option {
	return func(o *options) { o.allocOpts = append(o.allocOpts, opts...) }
}

// Store is an open filemap store.
type Store struct {
	db     *bolt.DB
	id     uuid.UUID
	alloc  diskalloc.Allocator
	index  *metaindex.BoltIndex
	engine *rangetree.BoltEngine
}

// Open opens, creating if necessary, the store at path.
func Open(ctx context.Context, path string, opts ...Option) (_ *Store, retErr error) {
	o := options{timeout: time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, replayerr.WrapIO(errors.EnsureStack(err), "create store directory")
	}
	db, err := bolt.Open(path, perm, &bolt.Options{Timeout: o.timeout, NoSync: o.noSync})
	if err != nil {
		return nil, replayerr.WrapIO(errors.EnsureStack(err), "open store "+path)
	}
	defer func() {
		if retErr != nil {
			if err := db.Close(); err != nil {
				log.Error(ctx, "problem closing store after failed open", zap.Error(err))
			}
		}
	}()
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	if err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(storeBucket)
		if b == nil {
			return replayerr.Invalidf("%s is not a filemap store", path)
		}
		id, err := uuid.FromBytes(b.Get(idKey))
		if err != nil {
			return replayerr.WrapIO(errors.Wrap(err, "parse store id"), "open store")
		}
		s.id = id
		return nil
	}); err != nil {
		return nil, err
	}
	if s.alloc, err = diskalloc.NewBoltAllocator(db, o.allocOpts...); err != nil {
		return nil, err
	}
	if s.index, err = metaindex.NewBoltIndex(db); err != nil {
		return nil, err
	}
	if s.engine, err = rangetree.NewBoltEngine(db); err != nil {
		return nil, err
	}
	log.Debug(ctx, "opened filemap store", zap.String("path", path), zap.Stringer("storeID", s.id))
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(storeBucket)
		if err != nil {
			return errors.EnsureStack(err)
		}
		if b.Get(idKey) != nil {
			return nil
		}
		id := uuid.New()
		return errors.EnsureStack(b.Put(idKey, id[:]))
	}); err != nil {
		return replayerr.WrapIO(err, "init store")
	}
	if err := metaindex.InitBolt(s.db); err != nil {
		return err
	}
	return rangetree.InitBolt(s.db)
}

// ID is the random identifier written when the store was created.
func (s *Store) ID() uuid.UUID { return s.id }

// Path is the database file.
func (s *Store) Path() string { return s.db.Path() }

// Allocator is the store's page allocator.
func (s *Store) Allocator() diskalloc.Allocator { return s.alloc }

// Index is the store's meta index.
func (s *Store) Index() *metaindex.BoltIndex { return s.index }

// Engine is the store's range tree engine.
func (s *Store) Engine() *rangetree.BoltEngine { return s.engine }

// Close closes the database.  Every PageRef obtained from the store must be released first.
func (s *Store) Close() error {
	return replayerr.WrapIO(errors.EnsureStack(s.db.Close()), "close store")
}
