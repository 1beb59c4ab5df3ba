package filemap

import (
	"math"

	"github.com/replayfs/replayfs/src/internal/replayerr"
)

// initialFragments is the starting capacity of a read's fragment buffer.
const initialFragments = 16

// entryBuffer accumulates a read's fragments.  Its capacity starts at initialFragments and
// doubles when full, stopping at limit; growing a buffer already at limit fails.
type entryBuffer struct {
	entries []ReconstructedEntry
	limit   int
	grows   int
}

func newEntryBuffer(limit int) *entryBuffer {
	return &entryBuffer{
		entries: make([]ReconstructedEntry, 0, initialFragments),
		limit:   limit,
	}
}

func (b *entryBuffer) append(e ReconstructedEntry) error {
	if len(b.entries) == cap(b.entries) {
		if err := b.grow(); err != nil {
			return err
		}
	}
	b.entries = append(b.entries, e)
	return nil
}

func (b *entryBuffer) grow() error {
	old := cap(b.entries)
	if old > math.MaxInt/2 || (b.limit > 0 && old >= b.limit) {
		return replayerr.Allocationf("read needs more than %d fragments (limit %d)", old, b.limit)
	}
	size := old * 2
	if b.limit > 0 {
		size = min(size, b.limit)
	}
	next := make([]ReconstructedEntry, len(b.entries), size)
	copy(next, b.entries)
	b.entries = next
	b.grows++
	return nil
}

// result hands the fragments over; the buffer must not be used afterwards.
func (b *entryBuffer) result() *ReadResult {
	r := &ReadResult{Entries: b.entries}
	b.entries = nil
	return r
}
