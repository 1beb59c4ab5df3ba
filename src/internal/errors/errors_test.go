package errors

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureStack(t *testing.T) {
	require.NoError(t, EnsureStack(nil))

	err := EnsureStack(io.EOF)
	require.True(t, Is(err, io.EOF))
	var st stackTracer
	require.True(t, As(err, &st))

	// An error that already carries a stack is returned untouched.
	withStack := New("boom")
	require.Equal(t, withStack, EnsureStack(withStack))
}

func TestWrapPreservesSentinel(t *testing.T) {
	sentinel := New("sentinel")
	err := Wrapf(Wrap(sentinel, "inner"), "outer %d", 1)
	require.True(t, Is(err, sentinel))
	require.Equal(t, "outer 1: inner: sentinel", err.Error())
}

func TestForEachStackFrame(t *testing.T) {
	var frames int
	ForEachStackFrame(Wrap(New("root"), "wrapped"), func(Frame) { frames++ })
	require.NotZero(t, frames)

	frames = 0
	ForEachStackFrame(io.EOF, func(Frame) { frames++ })
	require.Zero(t, frames)
}

type closer struct{ err error }

func (c closer) Close() error { return c.err }

func TestClose(t *testing.T) {
	var err error
	Close(&err, closer{}, "close %s", "ok")
	require.NoError(t, err)

	Close(&err, closer{err: io.ErrClosedPipe}, "close %s", "pipe")
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.Contains(t, err.Error(), "close pipe")

	first := New("first")
	err = first
	Close(&err, closer{err: io.ErrUnexpectedEOF}, "close")
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
