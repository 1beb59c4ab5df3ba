// Package filemap records, for every byte range written to a tracked file, which traced event
// wrote it, and reconstructs that provenance for any range of the file afterwards.
//
// A Service owns the storage shared by all files: the page allocator, the meta index from file
// identity to range tree location, and the range tree engine.  Service.Init binds a Filemap to
// one file, creating the file's range tree on first use.  Writes to one file must be serialized by
// the caller, and reads are not expected to race with writes to the same range.
package filemap

import (
	"context"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/log"
	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
	"github.com/replayfs/replayfs/src/internal/storage/metaindex"
	"github.com/replayfs/replayfs/src/internal/storage/rangetree"
)

// Service creates and attaches filemaps.  It is safe for concurrent use.
type Service struct {
	alloc  diskalloc.Allocator
	index  metaindex.Index
	engine rangetree.Engine

	cacheSize    int
	maxFragments int
	cache        *lru.Cache[FileIdentity, Location]
	init         singleflight.Group
}

// NewService returns a Service over the given storage.  The index must already be initialized.
func NewService(alloc diskalloc.Allocator, index metaindex.Index, engine rangetree.Engine, opts ...Option) (*Service, error) {
	s := &Service{
		alloc:     alloc,
		index:     index,
		engine:    engine,
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize > 0 {
		c, err := lru.New[FileIdentity, Location](s.cacheSize)
		if err != nil {
			return nil, errors.EnsureStack(err)
		}
		s.cache = c
	}
	return s, nil
}

func (s *Service) cached(id FileIdentity) (Location, bool) {
	if s.cache == nil {
		return 0, false
	}
	return s.cache.Get(id)
}

func (s *Service) remember(id FileIdentity, loc Location) {
	if s.cache != nil {
		s.cache.Add(id, loc)
	}
}

// Create allocates a page, builds an empty range tree on it and registers the tree under id.  If id
// is already registered the new tree and page are rolled back and the error is an ErrConflict.
func (s *Service) Create(ctx context.Context, id FileIdentity) (_ Location, retErr error) {
	ctx, end := log.SpanContext(ctx, "filemapCreate", zap.Stringer("identity", id))
	defer end(log.Errorp(&retErr))

	page, err := s.alloc.AllocPage(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "allocate range tree root")
	}
	tree, err := s.engine.Create(ctx, s.alloc, page)
	if err != nil {
		s.freePage(ctx, page)
		if !replayerr.Classified(err) {
			return 0, replayerr.Allocationf("create range tree: %v", err)
		}
		return 0, errors.Wrap(err, "create range tree")
	}
	loc := tree.Location()
	if err := tree.Close(ctx); err != nil {
		log.Error(ctx, "problem closing new range tree", zap.Error(err))
	}
	if err := s.index.Insert(ctx, id.key(), loc); err != nil {
		if replayerr.IsConflict(err) {
			conflictsMetric.Inc()
		}
		if dropErr := s.engine.Drop(ctx, loc); dropErr != nil {
			log.Error(ctx, "problem dropping range tree during rollback", zap.Int64("location", loc), zap.Error(dropErr))
		}
		s.freePage(ctx, page)
		return 0, errors.Wrapf(err, "register %v", id)
	}
	s.remember(id, Location(loc))
	log.Debug(ctx, "created range tree", zap.Int64("location", loc))
	return Location(loc), nil
}

func (s *Service) freePage(ctx context.Context, p diskalloc.Page) {
	if err := s.alloc.FreePage(ctx, p); err != nil {
		log.Error(ctx, "problem freeing page during rollback", zap.Uint64("page", p.Index), zap.Error(err))
	}
}

// Lookup returns the location of id's range tree without creating one.
func (s *Service) Lookup(ctx context.Context, id FileIdentity) (Location, bool, error) {
	if loc, ok := s.cached(id); ok {
		return loc, true, nil
	}
	loc, ref, found, err := s.index.Lookup(ctx, id.key())
	if err != nil {
		return 0, false, errors.Wrapf(err, "look up %v", id)
	}
	ref.Release()
	if !found {
		return 0, false, nil
	}
	s.remember(id, Location(loc))
	return Location(loc), true, nil
}

// resolve returns id's location, creating its tree if it has none.  A create that loses a race
// with another registration of id uses the winner's tree.
func (s *Service) resolve(ctx context.Context, id FileIdentity) (Location, error) {
	v, err, _ := s.init.Do(id.String(), func() (any, error) {
		loc, found, err := s.Lookup(ctx, id)
		if err != nil {
			return Location(0), err
		}
		if found {
			initsMetric.WithLabelValues("found").Inc()
			return loc, nil
		}
		loc, err = s.Create(ctx, id)
		if replayerr.IsConflict(err) {
			log.Info(ctx, "filemap registered concurrently; attaching to existing tree", zap.Stringer("identity", id))
			loc, found, err = s.Lookup(ctx, id)
			if err == nil && !found {
				err = replayerr.NotFoundf("%v vanished after conflicting create", id)
			}
			if err == nil {
				initsMetric.WithLabelValues("found").Inc()
			}
			return loc, err
		}
		if err == nil {
			initsMetric.WithLabelValues("created").Inc()
		}
		return loc, err
	})
	if err != nil {
		return 0, err
	}
	return v.(Location), nil
}

// Init returns a Filemap bound to id's range tree, creating the tree on first use.  Every Init of
// the same identity binds to the same location.
func (s *Service) Init(ctx context.Context, id FileIdentity) (_ *Filemap, retErr error) {
	ctx, end := log.SpanContext(ctx, "filemapInit", zap.Stringer("identity", id))
	defer end(log.Errorp(&retErr))

	loc, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, err := s.engine.Open(ctx, s.alloc, int64(loc))
	if err != nil {
		return nil, errors.Wrapf(err, "open range tree of %v", id)
	}
	return &Filemap{id: id, loc: loc, tree: tree, maxFragments: s.maxFragments}, nil
}

// Filemap is a handle on one file's range tree.  It is not safe for concurrent use.
type Filemap struct {
	id           FileIdentity
	loc          Location
	tree         rangetree.Tree
	maxFragments int
}

// Identity is the file the handle is bound to.
func (f *Filemap) Identity() FileIdentity { return f.id }

// Location is the location of the file's range tree.
func (f *Filemap) Location() Location { return f.loc }

// Destroy releases the handle.  Recorded provenance and the file's registration are kept.
func (f *Filemap) Destroy(ctx context.Context) error {
	return errors.Wrapf(f.tree.Close(ctx), "close range tree of %v", f.id)
}

func checkSpan(offset, size int64) error {
	if offset < 0 {
		return replayerr.Invalidf("negative offset %d", offset)
	}
	if size < 0 {
		return replayerr.Invalidf("negative size %d", size)
	}
	if offset > math.MaxInt64-size {
		return replayerr.Invalidf("range %d+%d overflows", offset, size)
	}
	return nil
}

// Write records that rec produced the size bytes starting at offset.  Provenance previously
// recorded for any of those bytes is replaced.
func (f *Filemap) Write(ctx context.Context, rec ProvenanceRecord, offset, size int64) error {
	if err := checkSpan(offset, size); err != nil {
		return err
	}
	if err := f.tree.InsertOrUpdate(ctx, rangetree.Range{Offset: offset, Size: size}, rec.value()); err != nil {
		return errors.Wrapf(err, "record [%d, %d) of %v", offset, offset+size, f.id)
	}
	writesMetric.Inc()
	writtenBytesMetric.Add(float64(size))
	return nil
}

// Read reconstructs the provenance of the size bytes starting at offset.  The fragments are in
// file order and their sizes sum to size.  If any byte in the range was never written the error is
// an ErrNotFound and no fragments are returned.  Reading zero bytes returns an empty result.
func (f *Filemap) Read(ctx context.Context, offset, size int64) (_ *ReadResult, retErr error) {
	ctx, end := log.SpanContext(ctx, "filemapRead", zap.Stringer("identity", f.id), log.Range("range", offset, size))
	defer end(log.Errorp(&retErr))
	defer func() { readsMetric.WithLabelValues(readOutcome(retErr)).Inc() }()

	if err := checkSpan(offset, size); err != nil {
		return nil, err
	}
	buf := newEntryBuffer(f.maxFragments)
	defer func() { bufferGrowthMetric.Add(float64(buf.grows)) }()
	stop := offset + size
	for cur := offset; cur < stop; {
		r, v, ref, err := f.tree.LookupCovering(ctx, cur)
		if err != nil {
			if replayerr.IsNotFound(err) {
				return nil, replayerr.NotFoundf("byte %d of %v was never written", cur, f.id)
			}
			return nil, errors.Wrapf(err, "look up byte %d of %v", cur, f.id)
		}
		e := ReconstructedEntry{
			Record:             recordOf(v),
			SourceOffset:       r.Offset,
			Size:               min(r.End(), stop) - cur,
			OffsetWithinSource: cur - r.Offset,
		}
		ref.Release()
		if err := buf.append(e); err != nil {
			return nil, err
		}
		cur = r.End()
	}
	res := buf.result()
	fragmentsMetric.Observe(float64(res.Len()))
	return res, nil
}

func readOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case replayerr.IsNotFound(err):
		return "not_found"
	case replayerr.IsAllocation(err):
		return "allocation_failure"
	case replayerr.IsInvalid(err):
		return "invalid"
	default:
		return "error"
	}
}

// Extents lists every stored range of the file in offset order.
func (f *Filemap) Extents(ctx context.Context) ([]Extent, error) {
	var out []Extent
	if err := f.tree.Walk(ctx, func(r rangetree.Range, v rangetree.Value) error {
		out = append(out, Extent{Offset: r.Offset, Size: r.Size, Record: recordOf(v)})
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "walk range tree of %v", f.id)
	}
	return out, nil
}
