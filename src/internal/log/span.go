package log

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EndSpanFunc ends a span.  Pass Errorp(&err) (or zap.Error(err)) to mark the span failed.
type EndSpanFunc = func(fields ...Field)

const errorpType = zapcore.InlineMarshalerType + 100

// Errorp is a Field that marks a span as failed if *err is non-nil when the span ends.  It is meant
// for named error returns:
//
//	func f(ctx context.Context) (retErr error) {
//		defer log.Span(ctx, "f")(log.Errorp(&retErr))
//		...
//	}
func Errorp(err *error) Field {
	return zapcore.Field{Key: "error", Type: errorpType, Interface: err}
}

// SpanContext starts a debug-level span named event.  The returned context logs under the span's
// name, and the returned function must be called (usually deferred) to log the span's end and
// duration.
func SpanContext(ctx context.Context, event string, fields ...Field) (context.Context, EndSpanFunc) {
	l := extractLogger(ctx).Named(event).With(fields...)
	if ce := l.WithOptions(zap.AddCallerSkip(1)).Check(zapcore.DebugLevel, event+": span start"); ce != nil {
		ce.Write(ContextInfo(ctx))
	}
	start := time.Now()
	return withLogger(ctx, l), func(endFields ...Field) {
		failed := false
		out := []Field{zap.Duration("spanDuration", time.Since(start))}
		for _, f := range endFields {
			if f.Type == errorpType {
				if errp, ok := f.Interface.(*error); ok && errp != nil && *errp != nil {
					failed = true
					out = append(out, zap.Error(*errp))
				}
				continue
			}
			if _, ok := f.Interface.(error); ok && f.Type == zapcore.ErrorType {
				failed = true
			}
			out = append(out, f)
		}
		lvl, msg := zapcore.DebugLevel, event+": span finished ok"
		if failed {
			lvl, msg = zapcore.InfoLevel, event+": span failed"
		}
		if ce := l.Check(lvl, msg); ce != nil {
			ce.Write(out...)
		}
	}
}

// Span is SpanContext for callers that do not need the span's context.
func Span(ctx context.Context, event string, fields ...Field) EndSpanFunc {
	_, end := SpanContext(ctx, event, fields...)
	return end
}
