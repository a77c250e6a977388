package scraper

import (
	"context"
	"sync"
	"time"
)

// pacer enforces a fixed inter-request delay toward one source, independent
// of the sliding-window limiter. These are third-party services whose
// tolerance is unknown; conservative pacing is safer than retrying after a
// block.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval, now: time.Now}
}

// wait blocks until the pacing interval since the previous request has
// elapsed, or ctx is done.
func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	now := p.now()
	next := p.last.Add(p.interval)
	if next.Before(now) {
		next = now
	}
	p.last = next
	p.mu.Unlock()

	sleep := next.Sub(now)
	if sleep <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sleep):
		return nil
	}
}
