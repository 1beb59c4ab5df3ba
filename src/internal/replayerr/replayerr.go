// Package replayerr defines the failure classes shared by the filemap and its storage backends.
// Every error returned across a package boundary in src/internal/storage and src/internal/filemap
// matches exactly one of the sentinels below under errors.Is.
package replayerr

import (
	"fmt"
	"syscall"

	"github.com/replayfs/replayfs/src/internal/errors"
)

var (
	// ErrAllocation means a page or memory budget was exhausted.  Nothing was committed.
	ErrAllocation = errors.New("allocation failure")
	// ErrConflict means a unique key (a file identity) was already registered.
	ErrConflict = errors.New("conflict")
	// ErrNotFound means a lookup found nothing; for reads, that some byte was never recorded.
	ErrNotFound = errors.New("not found")
	// ErrIO means the underlying storage failed.
	ErrIO = errors.New("i/o failure")
	// ErrInvalid means the caller passed an argument that can never succeed.
	ErrInvalid = errors.New("invalid argument")
)

var classes = []error{ErrAllocation, ErrConflict, ErrNotFound, ErrIO, ErrInvalid}

// Allocationf returns an ErrAllocation with context.
func Allocationf(format string, args ...any) error {
	return errors.Wrapf(ErrAllocation, format, args...)
}

// Conflictf returns an ErrConflict with context.
func Conflictf(format string, args ...any) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

// NotFoundf returns an ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// Invalidf returns an ErrInvalid with context.
func Invalidf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

type ioError struct {
	op  string
	err error
}

func (e *ioError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.op, ErrIO, e.err)
}

func (e *ioError) Is(target error) bool { return target == ErrIO }

func (e *ioError) Unwrap() error { return e.err }

// WrapIO classifies err as an ErrIO unless it already belongs to one of the classes in this
// package, in which case it is only annotated with op.  A full disk is an ErrAllocation.  WrapIO
// returns nil if err is nil.
func WrapIO(err error, op string) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return errors.Wrap(err, op)
	}
	if errors.Is(err, syscall.ENOSPC) {
		return errors.Wrapf(ErrAllocation, "%s: %v", op, err)
	}
	return errors.WithStack(&ioError{op: op, err: err})
}

// Classified reports whether err already belongs to one of the classes in this package.
func Classified(err error) bool {
	for _, c := range classes {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

// IsAllocation reports whether err is an ErrAllocation.
func IsAllocation(err error) bool { return errors.Is(err, ErrAllocation) }

// IsConflict reports whether err is an ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsIO reports whether err is an ErrIO.
func IsIO(err error) bool { return errors.Is(err, ErrIO) }

// IsInvalid reports whether err is an ErrInvalid.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalid) }
