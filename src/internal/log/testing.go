package log

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// RecordedEntry is a log line captured by TestWithCapture.
type RecordedEntry struct {
	Severity string
	Logger   string
	Message  string
	Fields   map[string]any
}

// History gives access to captured logs.
type History struct {
	logs *observer.ObservedLogs
}

// Logs returns every line captured so far.
func (h *History) Logs() []*RecordedEntry {
	var result []*RecordedEntry
	for _, e := range h.logs.All() {
		result = append(result, &RecordedEntry{
			Severity: e.Level.String(),
			Logger:   e.LoggerName,
			Message:  e.Message,
			Fields:   e.ContextMap(),
		})
	}
	return result
}

// HasALog fails the test if nothing has been logged.
func (h *History) HasALog(t testing.TB) {
	t.Helper()
	if h.logs.Len() == 0 {
		t.Error("expected some logs, but found none")
	}
}

// Messages returns "severity: message" for each captured line.
func (h *History) Messages() []string {
	var result []string
	for _, e := range h.Logs() {
		result = append(result, fmt.Sprintf("%s: %s", e.Severity, e.Message))
	}
	return result
}

func newTestLogger(t testing.TB, opts ...zap.Option) (*zap.Logger, *History) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core, opts...), &History{logs: logs}
}

// TestWithCapture returns a context whose logs are captured, and installs the same logger as the
// global logger for the duration of the test.  Tests using it must not run in parallel.
func TestWithCapture(t testing.TB, opts ...zap.Option) (context.Context, *History) {
	t.Helper()
	l, h := newTestLogger(t, opts...)
	restore := zap.ReplaceGlobals(l)
	undoStd := zap.RedirectStdLog(l)
	t.Cleanup(func() {
		undoStd()
		restore()
	})
	return withLogger(context.Background(), l), h
}

// Test returns a context that logs to the test's output.
func Test(t testing.TB) context.Context {
	t.Helper()
	return withLogger(context.Background(), zaptest.NewLogger(t, zaptest.Level(zapcore.DebugLevel)))
}
