// Package pretty implements pretty-printing for filemap provenance.
package pretty

import (
	"fmt"
	"io"
	"strconv"

	"github.com/docker/go-units"
	"github.com/dustin/go-humanize"

	"github.com/replayfs/replayfs/src/internal/filemap"
	"github.com/replayfs/replayfs/src/internal/storage/diskalloc"
)

const (
	// FragmentHeader is the header of a provenance table.
	FragmentHeader = "RANGE\tSIZE\tSOURCE\tPID\tSYSCALL\tKIND\tUNIQUE ID\t\n"
	// ExtentHeader is the header of an extent table.
	ExtentHeader = "RANGE\tSIZE\tPID\tSYSCALL\tKIND\tUNIQUE ID\tBUFFER OFFSET\t\n"
)

// Size formats a byte count the way sizes are written in configuration.
func Size(n int64) string {
	return units.BytesSize(float64(n))
}

// Kind renders a mutation kind, which is usually a printable letter.
func Kind(k byte) string {
	if strconv.IsPrint(rune(k)) && k < 0x80 {
		return string(rune(k))
	}
	return fmt.Sprintf("0x%02x", k)
}

func span(offset, size int64) string {
	return fmt.Sprintf("[%d, %d)", offset, offset+size)
}

// PrintFragment prints one fragment of a read: the bytes it covers, then where they came from.
func PrintFragment(w io.Writer, start int64, e filemap.ReconstructedEntry) {
	fmt.Fprintf(w, "%s\t", span(start, e.Size))
	fmt.Fprintf(w, "%s\t", Size(e.Size))
	fmt.Fprintf(w, "%d+%d\t", e.SourceOffset, e.OffsetWithinSource)
	fmt.Fprintf(w, "%d\t%d\t%s\t%d\t\n", e.Record.PID, e.Record.Syscall, Kind(e.Record.Kind), e.Record.UniqueID)
}

// PrintReadResult prints every fragment of r, which is the provenance of the bytes starting at
// offset.
func PrintReadResult(w io.Writer, offset int64, r *filemap.ReadResult) {
	cur := offset
	for _, e := range r.Entries {
		PrintFragment(w, cur, e)
		cur += e.Size
	}
}

// PrintExtent prints one stored range.
func PrintExtent(w io.Writer, e filemap.Extent) {
	fmt.Fprintf(w, "%s\t%s\t", span(e.Offset, e.Size), Size(e.Size))
	fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%d\t\n", e.Record.PID, e.Record.Syscall, Kind(e.Record.Kind), e.Record.UniqueID, e.Record.BufferOffset)
}

// FileStat describes a tracked file and the store holding it.
type FileStat struct {
	Path     string               `json:"path"`
	Identity filemap.FileIdentity `json:"identity"`
	Tracked  bool                 `json:"tracked"`
	Location filemap.Location     `json:"location,omitempty"`
	Backend  string               `json:"backend"`
	StoreID  string               `json:"storeId,omitempty"`
	PageSize int64                `json:"pageSize"`
	Pages    diskalloc.Stats      `json:"pages"`
	Extents  int                  `json:"extents"`
	Bytes    int64                `json:"bytes"`
}

// PrintFileStat prints s as a list of fields.
func PrintFileStat(w io.Writer, s *FileStat) {
	fmt.Fprintf(w, "Path: %s\n", s.Path)
	fmt.Fprintf(w, "Identity: %v (device %d, inode %d)\n", s.Identity, s.Identity.Device, s.Identity.Inode)
	if s.Tracked {
		fmt.Fprintf(w, "Range tree: %d (page %d)\n", s.Location, int64(s.Location)/s.PageSize)
		fmt.Fprintf(w, "Extents: %s covering %s\n", humanize.Comma(int64(s.Extents)), humanize.IBytes(uint64(s.Bytes)))
	} else {
		fmt.Fprintf(w, "Range tree: none\n")
	}
	fmt.Fprintf(w, "Store: %s", s.Backend)
	if s.StoreID != "" {
		fmt.Fprintf(w, " %s", s.StoreID)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Pages: %s allocated, %s free, high water %s (%s each)\n",
		humanize.Comma(int64(s.Pages.Allocated)), humanize.Comma(int64(s.Pages.Free)),
		humanize.Comma(int64(s.Pages.HighWater)), Size(s.PageSize))
}
