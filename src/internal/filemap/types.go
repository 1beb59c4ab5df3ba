package filemap

import (
	"fmt"

	"github.com/replayfs/replayfs/src/internal/storage/metaindex"
	"github.com/replayfs/replayfs/src/internal/storage/rangetree"
)

// FileIdentity names a tracked file by its inode and the device holding it.
type FileIdentity struct {
	Inode  uint64 `json:"inode"`
	Device uint64 `json:"device"`
}

func (id FileIdentity) key() metaindex.Key {
	return metaindex.Key{ID1: id.Inode, ID2: id.Device}
}

func (id FileIdentity) String() string {
	return fmt.Sprintf("%d:%d", id.Device, id.Inode)
}

// Location is the persistent address of a file's range tree.  Zero is never a valid location.
type Location int64

// KindWrite marks bytes produced by a write system call.  Other kind bytes are stored as given.
const KindWrite byte = 'w'

// ProvenanceRecord says which traced event produced a range of bytes.
type ProvenanceRecord struct {
	UniqueID int64 `json:"uniqueId"`
	PID      int32 `json:"pid"`
	Syscall  int64 `json:"syscall"`
	Kind     byte  `json:"kind"`
	// BufferOffset is where the stored range started within the buffer of the write that
	// produced it.  Callers normally leave it zero; it is advanced when a later write splits the
	// range.
	BufferOffset int64 `json:"bufferOffset"`
}

func (r ProvenanceRecord) value() rangetree.Value {
	return rangetree.Value{
		UniqueID:     r.UniqueID,
		PID:          r.PID,
		Syscall:      r.Syscall,
		Kind:         r.Kind,
		BufferOffset: r.BufferOffset,
	}
}

func recordOf(v rangetree.Value) ProvenanceRecord {
	return ProvenanceRecord{
		UniqueID:     v.UniqueID,
		PID:          v.PID,
		Syscall:      v.Syscall,
		Kind:         v.Kind,
		BufferOffset: v.BufferOffset,
	}
}

// ReconstructedEntry is one fragment of a read: the part of a stored range that falls inside the
// query.
type ReconstructedEntry struct {
	Record ProvenanceRecord `json:"record"`
	// SourceOffset is the file offset where the stored range starts.
	SourceOffset int64 `json:"sourceOffset"`
	// Size is the number of bytes of the query this fragment covers.
	Size int64 `json:"size"`
	// OffsetWithinSource is where the fragment starts relative to SourceOffset.
	OffsetWithinSource int64 `json:"offsetWithinSource"`
}

// ReadResult is the provenance of a whole queried range, in file order and without gaps.
type ReadResult struct {
	Entries []ReconstructedEntry `json:"entries"`
}

// Len is the number of fragments.
func (r *ReadResult) Len() int {
	return len(r.Entries)
}

// TotalSize is the number of bytes covered, which equals the size that was queried.
func (r *ReadResult) TotalSize() int64 {
	var n int64
	for _, e := range r.Entries {
		n += e.Size
	}
	return n
}

// Extent is a stored range and the record that wrote it.
type Extent struct {
	Offset int64            `json:"offset"`
	Size   int64            `json:"size"`
	Record ProvenanceRecord `json:"record"`
}
