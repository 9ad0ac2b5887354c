package engine

import (
	"sync/atomic"
	"time"
)

// captureWait tracks one armed idle timer for a capturing step. The reply
// path and the timer path race to resolve it; exactly one wins, so a step
// produces at most one handler invocation.
type captureWait struct {
	flow     string
	step     int
	timer    *time.Timer
	resolved atomic.Bool
}

// resolve claims the wait. Returns true for the single winning caller.
func (w *captureWait) resolve() bool {
	return w.resolved.CompareAndSwap(false, true)
}

func (w *captureWait) stopTimer() {
	if w.timer != nil {
		w.timer.Stop()
	}
}
