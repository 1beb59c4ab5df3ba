package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type byteRange struct{ offset, size int64 }

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r byteRange) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("offset", r.offset)
	enc.AddInt64("size", r.size)
	enc.AddInt64("end", r.offset+r.size)
	return nil
}

// Range is a Field describing the byte range [offset, offset+size).
func Range(name string, offset, size int64) Field {
	return zap.Object(name, byteRange{offset: offset, size: size})
}
