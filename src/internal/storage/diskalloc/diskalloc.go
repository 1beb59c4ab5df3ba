// Package diskalloc hands out fixed-size storage pages.  A page is identified by its index; the
// byte address of a page (index * page size) is what the rest of the storage layer persists as a
// location.  Index 0 is never handed out, so a zero location always means "none".
package diskalloc

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// DefaultPageSize matches the page size of the original kernel allocator.
const DefaultPageSize int64 = 4096

// Page is an allocated storage page.
type Page struct {
	Index uint64
}

// Location returns the byte address of the page.
func (p Page) Location(pageSize int64) int64 {
	return int64(p.Index) * pageSize
}

// Stats describes the pages managed by an allocator.
type Stats struct {
	// Allocated is the number of pages currently handed out.
	Allocated uint64
	// Free is the number of previously used pages waiting to be reused.
	Free uint64
	// HighWater is the largest page index ever handed out.
	HighWater uint64
}

// Allocator allocates and frees pages.  Implementations are safe for concurrent use.
type Allocator interface {
	// AllocPage returns an unused page, or an ErrAllocation when the page budget is exhausted.
	AllocPage(ctx context.Context) (Page, error)
	// FreePage returns p to the allocator.  Freeing a page that is not allocated is ErrInvalid.
	FreePage(ctx context.Context, p Page) error
	// PageSize is the size in bytes of every page.
	PageSize() int64
	// Stats reports page usage.
	Stats(ctx context.Context) (Stats, error)
}

type options struct {
	pageSize int64
	maxPages uint64
}

// Option configures an allocator.
type Option func(*options)

// WithPageSize sets the page size.  Non-positive sizes are ignored.
func WithPageSize(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.pageSize = size
		}
	}
}

// WithMaxPages caps the number of pages that may be allocated at once.  Zero means no cap.
func WithMaxPages(n uint64) Option {
	return func(o *options) {
		o.maxPages = n
	}
}

func makeOptions(opts []Option) options {
	o := options{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PinCounter counts outstanding PageRefs.  A non-zero count after an operation returns is a
// leaked pin.
type PinCounter struct {
	n atomic.Int64
}

// Outstanding returns the number of unreleased PageRefs.
func (c *PinCounter) Outstanding() int64 {
	return c.n.Load()
}

// PageRef pins the page(s) that produced a lookup result.  The result stays valid until Release is
// called.  Release is idempotent and safe to call on a nil PageRef, so it can always be deferred.
type PageRef struct {
	once    sync.Once
	pins    *PinCounter
	release func()
}

// NewPageRef returns a pinned PageRef.  release, if non-nil, runs exactly once on Release.
func NewPageRef(pins *PinCounter, release func()) *PageRef {
	if pins != nil {
		pins.n.Inc()
	}
	return &PageRef{pins: pins, release: release}
}

// Release unpins the page.
func (r *PageRef) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
		if r.pins != nil {
			r.pins.n.Dec()
		}
	})
}
