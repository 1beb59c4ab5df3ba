// Package tabwriter prints aligned tables whose header is repeated every screenful, so long
// listings stay readable when streamed.
package tabwriter

import (
	"bytes"
	"io"

	"github.com/juju/ansiterm"

	"github.com/replayfs/replayfs/src/internal/errors"
)

const (
	// termHeight is the number of lines between repeated headers.
	termHeight = 50
)

// Writer is like a tabwriter except that it's suitable for large numbers of
// items because it periodically flushes its contents.
type Writer struct {
	w      *ansiterm.TabWriter
	lines  int
	height int
	header []byte
}

// NewWriter returns a new Writer that will flush every termHeight lines and reprint header after
// each flush.  header must end in a newline.
func NewWriter(w io.Writer, header string) *Writer {
	return NewStreamingWriter(w, termHeight, header)
}

// NewStreamingWriter is NewWriter with a chosen height, which counts the header line.
// NewStreamingWriter panics if height < 2.
func NewStreamingWriter(w io.Writer, height int, header string) *Writer {
	if height < 2 {
		panic("cannot create a tabwriter.Writer with height less than 2")
	}
	if header == "" || header[len(header)-1] != '\n' {
		panic("header must end in a new line")
	}
	tw := ansiterm.NewTabWriter(w, 0, 1, 1, ' ', 0)
	tw.Write([]byte(header)) //nolint:errcheck
	return &Writer{
		w:      tw,
		lines:  1, // 1 because we just printed the header
		height: height,
		header: []byte(header),
	}
}

// Write writes a line to the tabwriter.
func (w *Writer) Write(buf []byte) (int, error) {
	if w.lines >= w.height {
		if err := w.Flush(); err != nil {
			return 0, err
		}
		if _, err := w.w.Write(w.header); err != nil {
			return 0, errors.EnsureStack(err)
		}
		w.lines++
	}
	w.lines += bytes.Count(buf, []byte{'\n'})
	n, err := w.w.Write(buf)
	return n, errors.EnsureStack(err)
}

// Flush flushes the underlying tab writer.
func (w *Writer) Flush() error {
	w.lines = 0
	return errors.EnsureStack(w.w.Flush())
}
