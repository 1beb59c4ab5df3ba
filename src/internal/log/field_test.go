package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	ctx, h := TestWithCapture(t)
	Info(ctx, "read", Range("range", 7, 3))
	logs := h.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, map[string]any{"offset": int64(7), "size": int64(3), "end": int64(10)}, logs[0].Fields["range"])
}
