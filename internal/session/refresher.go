package session

import (
	"context"
	"time"
)

// StartRefresher drives the per-second redisplay of live codes: fn runs
// once per interval until ctx is cancelled. The returned channel closes
// when the loop has fully stopped, so teardown can wait for it before
// destroying state fn touches.
func StartRefresher(ctx context.Context, interval time.Duration, fn func(now time.Time)) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				fn(now)
			}
		}
	}()
	return done
}
