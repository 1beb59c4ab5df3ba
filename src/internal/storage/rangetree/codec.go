package rangetree

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"github.com/replayfs/replayfs/src/internal/errors"
	"github.com/replayfs/replayfs/src/internal/replayerr"
)

// Stored value layout, big-endian:
//
//	size(8) uniqueID(8) pid(4) syscall(8) kind(1) bufferOffset(8) xxh3(8)
const (
	payloadLen = 8 + 8 + 4 + 8 + 1 + 8
	valueLen   = payloadLen + 8
)

// encodeOffset flips the sign bit so byte order matches signed order.
func encodeOffset(off int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(off)^(1<<63))
	return buf[:]
}

func decodeOffset(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func encodeLocation(loc int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(loc))
	return buf[:]
}

func encodeValue(size int64, v Value) []byte {
	buf := make([]byte, valueLen)
	binary.BigEndian.PutUint64(buf[0:], uint64(size))
	binary.BigEndian.PutUint64(buf[8:], uint64(v.UniqueID))
	binary.BigEndian.PutUint32(buf[16:], uint32(v.PID))
	binary.BigEndian.PutUint64(buf[20:], uint64(v.Syscall))
	buf[28] = v.Kind
	binary.BigEndian.PutUint64(buf[29:], uint64(v.BufferOffset))
	binary.BigEndian.PutUint64(buf[payloadLen:], xxh3.Hash(buf[:payloadLen]))
	return buf
}

// decodeEntry rebuilds the entry stored under k.  A short or corrupt value is an ErrIO.
func decodeEntry(k, val []byte) (Entry, error) {
	if len(k) != 8 || len(val) != valueLen {
		return Entry{}, replayerr.WrapIO(errors.Errorf("malformed entry (key %d bytes, value %d bytes)", len(k), len(val)), "decode range entry")
	}
	if sum := binary.BigEndian.Uint64(val[payloadLen:]); sum != xxh3.Hash(val[:payloadLen]) {
		return Entry{}, replayerr.WrapIO(errors.Errorf("checksum mismatch at offset %d", decodeOffset(k)), "decode range entry")
	}
	return Entry{
		Range: Range{
			Offset: decodeOffset(k),
			Size:   int64(binary.BigEndian.Uint64(val[0:])),
		},
		Value: Value{
			UniqueID:     int64(binary.BigEndian.Uint64(val[8:])),
			PID:          int32(binary.BigEndian.Uint32(val[16:])),
			Syscall:      int64(binary.BigEndian.Uint64(val[20:])),
			Kind:         val[28],
			BufferOffset: int64(binary.BigEndian.Uint64(val[29:])),
		},
	}, nil
}
