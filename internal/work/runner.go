// internal/work/runner.go
package work

import (
	"context"
	"time"
)

// Every calls fn once per interval until ctx is done.
// No overlap: a slow fn delays the next tick.
func Every(ctx context.Context, interval time.Duration, fn func(time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now)
		}
	}
}
