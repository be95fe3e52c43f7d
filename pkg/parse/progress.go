package parse

import (
	"context"
	"sync"
	"time"
)

// Progress receives completion updates from a parse. It is only ever
// invoked on the goroutine that called Parse.
type Progress func(percent float64, message string)

// Report calls the sink if one is set
func (p Progress) Report(percent float64, message string) {
	if p != nil {
		p(percent, message)
	}
}

// Throttle wraps a sink so that it fires at most once per interval. The
// first call and the final 100% call always pass through. Throttling is a
// caller concern; parsers report at their natural granularity.
func Throttle(p Progress, interval time.Duration) Progress {
	if p == nil {
		return nil
	}
	var mu sync.Mutex
	var last time.Time
	return func(percent float64, message string) {
		mu.Lock()
		now := time.Now()
		pass := last.IsZero() || percent >= 100 || now.Sub(last) >= interval
		if pass {
			last = now
		}
		mu.Unlock()
		if pass {
			p(percent, message)
		}
	}
}

// Check returns a Cancelled error once ctx is done
func Check(ctx context.Context, path string) error {
	if ctx.Err() != nil {
		return Cancelled(path)
	}
	return nil
}

// Percent converts done/total into a 0..100 value
func Percent(done, total int64) float64 {
	if total <= 0 {
		return 100
	}
	p := float64(done) * 100 / float64(total)
	if p > 100 {
		return 100
	}
	return p
}
