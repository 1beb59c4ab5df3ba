package log

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// revertingLevel is a zap.AtomicLevel that can be raised or lowered for a while and then falls
// back to its configured level on its own.
type revertingLevel struct {
	zap.AtomicLevel

	mu     sync.Mutex
	base   zapcore.Level
	revert *time.Timer
}

var _ zapcore.LevelEnabler = (*revertingLevel)(nil)

func newRevertingLevel(l zapcore.Level) *revertingLevel {
	return &revertingLevel{
		AtomicLevel: zap.NewAtomicLevelAt(l),
		base:        l,
	}
}

// SetLevel changes both the current and the base level and cancels any pending revert.
func (rl *revertingLevel) SetLevel(l zapcore.Level) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.revert != nil {
		rl.revert.Stop()
		rl.revert = nil
	}
	rl.base = l
	rl.AtomicLevel.SetLevel(l)
}

// SetLevelFor changes the current level for d.  notify, if non-nil, runs after the revert.
func (rl *revertingLevel) SetLevelFor(l zapcore.Level, d time.Duration, notify func(from, to zapcore.Level)) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.revert != nil {
		rl.revert.Stop()
	}
	rl.AtomicLevel.SetLevel(l)
	rl.revert = time.AfterFunc(d, func() {
		rl.mu.Lock()
		from, to := rl.AtomicLevel.Level(), rl.base
		rl.AtomicLevel.SetLevel(to)
		rl.revert = nil
		rl.mu.Unlock()
		if notify != nil {
			notify(from, to)
		}
	})
}

// logLevel is the level of the logger installed by InitLogger.
var logLevel = newRevertingLevel(zapcore.InfoLevel)

// SetLevelFor temporarily sets the level of the process-wide logger.
func SetLevelFor(l zapcore.Level, d time.Duration) {
	logLevel.SetLevelFor(l, d, func(from, to zapcore.Level) {
		zap.L().Info("log level reverted", zap.Stringer("from", from), zap.Stringer("to", to))
	})
}
