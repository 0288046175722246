package scheduler

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy runs an operation up to Retries+1 times with a fixed backoff.
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
}

// Do calls fn until it succeeds, the attempts run out or ctx is done. The
// last error is returned wrapped with the attempt count.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.Retries + 1
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		if serr := sleep(ctx, p.Backoff); serr != nil {
			return fmt.Errorf("after %d attempts: %w", i, err)
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
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
