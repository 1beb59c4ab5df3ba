// Package log implements context-scoped logging for replayfs.
//
// Every logger lives on a context.Context.  Get a root context from pctx.Background (or, in tests,
// pctx.TestContext) and derive everything else from it; the package-level functions Debug, Info
// and Error pull the logger back out of the context:
//
//	log.Info(ctx, "created range tree", zap.Int64("location", loc))
//
// Passing a context without a logger is a programming error.  In development builds that panics;
// in production it is reported at DPanic level and the global logger is used instead.
package log

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured logging field.
type Field = zap.Field

type loggerKey struct{}

// LogOption modifies a logger attached to a child context.
type LogOption func(*zap.Logger) *zap.Logger

func withLogger(ctx context.Context, l *zap.Logger) context.Context {
	if l == nil {
		zap.L().DPanic("log: internal error: nil logger provided to withLogger")
		l = zap.L()
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

func extractLogger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		zap.L().DPanic("log: internal error: nil context provided to ExtractLogger")
		return zap.L()
	}
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	zap.L().DPanic("log: internal error: no logger in provided context")
	return zap.L()
}

// AddLogger attaches the global logger to ctx.  Most code should use pctx.Background instead.
func AddLogger(ctx context.Context) context.Context {
	return withLogger(ctx, zap.L())
}

// ChildLogger returns a context whose logger is named name (appended to the parent's name) and
// modified by opts.
func ChildLogger(ctx context.Context, name string, opts ...LogOption) context.Context {
	l := extractLogger(ctx)
	if name != "" {
		l = l.Named(name)
	}
	for _, opt := range opts {
		l = opt(l)
	}
	return withLogger(ctx, l)
}

// WithFields adds fields to every line logged by the child.
func WithFields(fields ...Field) LogOption {
	return func(l *zap.Logger) *zap.Logger {
		return l.With(fields...)
	}
}

// Debug logs a message at level debug.
func Debug(ctx context.Context, msg string, fields ...Field) {
	extractLogger(ctx).WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Info logs a message at level info.
func Info(ctx context.Context, msg string, fields ...Field) {
	extractLogger(ctx).WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Error logs a message at level error.  Errors returned to a caller should not also be logged;
// use this for errors that are handled here, like a failed cleanup.
func Error(ctx context.Context, msg string, fields ...Field) {
	extractLogger(ctx).WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// ContextInfo is a Field describing the context itself: its deadline and whether it is already
// done.
func ContextInfo(ctx context.Context) Field {
	if ctx == nil {
		return zap.Skip()
	}
	deadline, hasDeadline := ctx.Deadline()
	err := ctx.Err()
	if !hasDeadline && err == nil {
		return zap.Skip()
	}
	return zap.Object("context", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		if hasDeadline {
			enc.AddDuration("deadline", time.Until(deadline))
		}
		if err != nil {
			enc.AddString("err", err.Error())
		}
		return nil
	}))
}
