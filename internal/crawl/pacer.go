package crawl

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer inserts a random delay between browsing actions. The zero value
// never sleeps.
type Pacer struct {
	Min time.Duration
	Max time.Duration
}

// Delay returns the next pause length, uniformly drawn from [Min, Max].
func (p Pacer) Delay() time.Duration {
	if p.Max <= 0 {
		return max(p.Min, 0)
	}
	lo, hi := max(p.Min, 0), p.Max
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// Wait sleeps for the next delay or until ctx is done.
func (p Pacer) Wait(ctx context.Context) error {
	return sleep(ctx, p.Delay())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
