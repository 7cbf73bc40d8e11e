package core

import (
	"sync/atomic"
	"time"
)

// Reporter receives (bytesDone, totalBytes) updates during a transfer.
// Each connection gets its own Reporter; the engines never share one
// across goroutines.
type Reporter interface {
	Update(done, total int64)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(done, total int64)

func (f ReporterFunc) Update(done, total int64) { f(done, total) }

// NopReporter discards updates.
var NopReporter Reporter = ReporterFunc(func(int64, int64) {})

// DefaultProgressInterval bounds progress delivery to 10 updates per
// second.
const DefaultProgressInterval = 100 * time.Millisecond

// Throttle wraps r so updates are delivered at most once per
// interval. A terminal update (done == total) always passes through.
func Throttle(r Reporter, interval time.Duration) Reporter {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &throttledReporter{r: r, interval: int64(interval)}
}

type throttledReporter struct {
	r        Reporter
	interval int64
	last     atomic.Int64
}

func (t *throttledReporter) Update(done, total int64) {
	if done < total {
		now := time.Now().UnixNano()
		prev := t.last.Load()
		if now-prev < t.interval || !t.last.CompareAndSwap(prev, now) {
			return
		}
	}
	t.r.Update(done, total)
}
