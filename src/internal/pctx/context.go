package pctx

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/replayfs/replayfs/src/internal/log"
)

// Background returns the root context of a process.
func Background(process string) context.Context {
	return Child(log.AddLogger(context.Background()), process)
}

// TestContext returns a context that logs to t and is canceled when the test ends.
func TestContext(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(log.Test(t))
	t.Cleanup(cancel)
	return ctx
}

// Option customizes a child context.
type Option struct {
	modifyContext func(context.Context) context.Context
	modifyLogger  log.LogOption
}

// WithFields adds fields to every log line produced through the child.
func WithFields(fields ...zap.Field) Option {
	return Option{modifyLogger: log.WithFields(fields...)}
}

// WithValue attaches a value to the child context.
func WithValue(key, value any) Option {
	return Option{modifyContext: func(ctx context.Context) context.Context {
		return context.WithValue(ctx, key, value)
	}}
}

// Child returns a named child of ctx.  name may be empty.
func Child(ctx context.Context, name string, opts ...Option) context.Context {
	var logOpts []log.LogOption
	for _, opt := range opts {
		if opt.modifyLogger != nil {
			logOpts = append(logOpts, opt.modifyLogger)
		}
		if opt.modifyContext != nil {
			ctx = opt.modifyContext(ctx)
		}
	}
	return log.ChildLogger(ctx, name, logOpts...)
}
