// Package errors is the error handling package used throughout replayfs.  It re-exports
// github.com/pkg/errors so that every error created in this repository carries a stack trace, and
// the standard library's Is/As/Join so callers only need one import.
package errors

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Frame is a single frame of a stack trace.
type Frame = errors.Frame

// StackTrace is a stack of Frames from innermost (newest) to outermost (oldest).
type StackTrace = errors.StackTrace

type stackTracer interface {
	StackTrace() errors.StackTrace
}

var (
	// New returns an error with the supplied message and a stack trace.
	New = errors.New
	// Errorf formats according to a format specifier and returns an error with a stack trace.
	Errorf = errors.Errorf
	// Wrap annotates err with a message and a stack trace.  Wrap returns nil if err is nil.
	Wrap = errors.Wrap
	// Wrapf annotates err with a formatted message and a stack trace.
	Wrapf = errors.Wrapf
	// WithStack annotates err with a stack trace at the point WithStack was called.
	WithStack = errors.WithStack
	// Cause returns the underlying cause of the error, if possible.
	Cause = errors.Cause
	// Is reports whether any error in err's chain matches target.
	Is = stderrors.Is
	// As finds the first error in err's chain that matches target.
	As = stderrors.As
	// Unwrap returns the result of calling the Unwrap method on err, if any.
	Unwrap = stderrors.Unwrap
	// Join returns an error that wraps the given errors, discarding nils.
	Join = stderrors.Join
)

// EnsureStack adds a stack trace to err if it does not already have one.  It is meant for errors
// that come from outside this repository (the standard library, bbolt, etc.).
func EnsureStack(err error) error {
	if err == nil {
		return nil
	}
	var st stackTracer
	if As(err, &st) {
		return err
	}
	return WithStack(err)
}

// ForEachStackFrame calls f on each frame of the deepest stack trace found in err's chain.
func ForEachStackFrame(err error, f func(Frame)) {
	var deepest stackTracer
	for err != nil {
		if st, ok := err.(stackTracer); ok {
			deepest = st
		}
		next := Unwrap(err)
		if next == nil {
			if c, ok := err.(interface{ Cause() error }); ok {
				next = c.Cause()
			}
		}
		err = next
	}
	if deepest == nil {
		return
	}
	for _, frame := range deepest.StackTrace() {
		f(frame)
	}
}

// Close closes c, for use in a defer.  If closing fails the error is joined into *retErr,
// annotated with the formatted message.
func Close(retErr *error, c io.Closer, format string, args ...any) {
	if err := c.Close(); err != nil {
		*retErr = Join(*retErr, Wrap(err, fmt.Sprintf(format, args...)))
	}
}
