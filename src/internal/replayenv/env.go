// Package replayenv builds the storage and filemap service a process needs from its
// configuration.
package replayenv

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/filemap"
	"github.com/replayfs/replayfs/src/internal/log"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/boltstore"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
	"github.com/replayfs/replayfs/src/internal/storage/metaindex"
	"github.com/replayfs/replayfs/src/internal/storage/rangetree"
)

// Env is an opened filemap environment.
type Env struct {
	config  *Configuration
	store   *boltstore.Store
	alloc   diskalloc.Allocator
	service *filemap.Service
}

// New opens the storage described by config and builds a filemap service over it.
func New(ctx context.Context, config *Configuration) (_ *Env, retErr error) {
	ctx = log.ChildLogger(ctx, "replayenv")
	allocOpts := []diskalloc.Option{
		diskalloc.WithPageSize(int64(config.PageSize)),
		diskalloc.WithMaxPages(config.MaxPages),
	}
	env := &Env{config: config}
	var (
		index  metaindex.Index
		engine rangetree.Engine
	)
	switch config.Backend {
	case BackendMemory:
		env.alloc = diskalloc.NewMemAllocator(allocOpts...)
		index, engine = metaindex.NewMemIndex(), rangetree.NewMemEngine()
	case BackendBolt, "":
		opts := []boltstore.Option{
			boltstore.WithTimeout(config.OpenTimeout),
			boltstore.WithAllocatorOptions(allocOpts...),
		}
		if config.NoSync {
			opts = append(opts, boltstore.WithNoSync())
		}
		store, err := boltstore.Open(ctx, config.DBPath, opts...)
		if err != nil {
			return nil, err
		}
		defer func() {
			if retErr != nil {
				if err := store.Close(); err != nil {
					log.Error(ctx, "problem closing store", zap.Error(err))
				}
			}
		}()
		env.store = store
		env.alloc, index, engine = store.Allocator(), store.Index(), store.Engine()
	default:
		return nil, replayerr.Invalidf("unknown storage backend %q", config.Backend)
	}
	svc, err := filemap.NewService(env.alloc, index, engine,
		filemap.WithCacheSize(config.CacheSize),
		filemap.WithMaxFragments(config.MaxFragments),
	)
	if err != nil {
		return nil, errors.Wrap(err, "new filemap service")
	}
	env.service = svc
	log.Info(ctx, "filemap environment ready", zap.String("backend", env.Backend()), zap.Stringer("storeID", env.StoreID()))
	return env, nil
}

// Config is the configuration the Env was built from.
func (env *Env) Config() *Configuration { return env.config }

// Service is the filemap service.
func (env *Env) Service() *filemap.Service { return env.service }

// Allocator is the page allocator backing the service.
func (env *Env) Allocator() diskalloc.Allocator { return env.alloc }

// Backend names the storage in use.
func (env *Env) Backend() string {
	if env.store == nil {
		return BackendMemory
	}
	return BackendBolt
}

// StoreID identifies the bolt store, or is the nil UUID for memory storage.
func (env *Env) StoreID() uuid.UUID {
	if env.store == nil {
		return uuid.Nil
	}
	return env.store.ID()
}

// Close releases the storage.
func (env *Env) Close() error {
	if env.store == nil {
		return nil
	}
	return env.store.Close()
}
