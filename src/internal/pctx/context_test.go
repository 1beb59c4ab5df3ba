package pctx

import (
	"testing"

	"go.uber.org/zap"

	"github.com/replayfs/replayfs/src/internal/log"
)

func TestBackground(t *testing.T) {
	_, h := log.TestWithCapture(t)
	log.Info(Background(""), "hi")
	h.HasALog(t)
}

type key struct{}

func TestChild(t *testing.T) {
	rctx, h := log.TestWithCapture(t)
	ctx := Child(rctx, "replay", WithFields(zap.String("file", "a")), WithValue(key{}, 7))
	log.Info(ctx, "hi")
	if got := ctx.Value(key{}); got != 7 {
		t.Errorf("value: got %v, want 7", got)
	}
	logs := h.Logs()
	if len(logs) != 1 || logs[0].Logger != "replay" || logs[0].Fields["file"] != "a" {
		t.Errorf("unexpected logs: %#v", logs)
	}
}
