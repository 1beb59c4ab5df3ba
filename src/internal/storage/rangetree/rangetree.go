// Package rangetree stores, for one tracked file, the provenance of every byte range written to
// it.  A tree maps non-overlapping ranges to the Value that last wrote them: writing a range
// removes the overwritten bytes from whatever was stored there before, keeping the parts of older
// entries that fall outside it.  Every address is therefore covered by at most one entry.
//
// Trees are owned by an Engine and addressed by the location of their root page, which is how the
// file's metaindex entry refers to them.
package rangetree

import (
	"context"
	"fmt"
	"math"

	"github.com/replayfs/replayfs/src/internal/replayerr"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

// Range is a half-open byte range [Offset, Offset+Size).
type Range struct {
	Offset int64
	Size   int64
}

// End is the first offset past the range.
func (r Range) End() int64 {
	return r.Offset + r.Size
}

// Contains reports whether addr lies inside the range.
func (r Range) Contains(addr int64) bool {
	return addr >= r.Offset && addr < r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Offset, r.End())
}

// Validate returns an ErrInvalid for an empty range or one whose end overflows.
func (r Range) Validate() error {
	if r.Size <= 0 {
		return replayerr.Invalidf("range %d+%d: size must be positive", r.Offset, r.Size)
	}
	if r.Offset > math.MaxInt64-r.Size {
		return replayerr.Invalidf("range %d+%d: end overflows", r.Offset, r.Size)
	}
	return nil
}

// Value is what a tree stores against a range.
type Value struct {
	UniqueID int64
	PID      int32
	Syscall  int64
	Kind     byte
	// BufferOffset is the position of the range's first byte within the write that produced it.
	BufferOffset int64
}

// Entry is a stored range and its value.
type Entry struct {
	Range
	Value
}

// Tree is a handle to one range tree.  A Tree is not safe for concurrent writers.
type Tree interface {
	// Location is the persistent address of the tree.
	Location() int64
	// InsertOrUpdate stores v for r, replacing whatever was stored for the bytes r covers.
	InsertOrUpdate(ctx context.Context, r Range, v Value) error
	// LookupCovering returns the entry containing addr, or an ErrNotFound.  On success the
	// caller owns ref and must release it.
	LookupCovering(ctx context.Context, addr int64) (r Range, v Value, ref *diskalloc.PageRef, err error)
	// Walk calls cb for every entry in offset order.
	Walk(ctx context.Context, cb func(Range, Value) error) error
	// Close releases the handle.  Stored entries are not affected.
	Close(ctx context.Context) error
}

// Engine creates and opens trees.
type Engine interface {
	// Create makes an empty tree rooted at page.
	Create(ctx context.Context, alloc diskalloc.Allocator, page diskalloc.Page) (Tree, error)
	// Open attaches to the tree at loc.  It is an ErrNotFound if no tree lives there.
	Open(ctx context.Context, alloc diskalloc.Allocator, loc int64) (Tree, error)
	// Drop deletes the tree at loc and everything stored in it.  No handle to it may be open.
	Drop(ctx context.Context, loc int64) error
}

// carve returns what survives of old once r is written over it.  old must overlap r.  A left
// remnant keeps old's buffer offset; a right remnant has it advanced past the removed bytes.
func carve(old Entry, r Range) []Entry {
	var out []Entry
	if old.Offset < r.Offset {
		left := old
		left.Size = r.Offset - old.Offset
		out = append(out, left)
	}
	if old.End() > r.End() {
		right := old
		right.Offset = r.End()
		right.Size = old.End() - r.End()
		right.BufferOffset += r.End() - old.Offset
		out = append(out, right)
	}
	return out
}

// overlaps reports whether e shares at least one byte with r.
func overlaps(e Entry, r Range) bool {
	return e.Offset < r.End() && r.Offset < e.End()
}

var errClosed = replayerr.Invalidf("range tree handle is closed")
