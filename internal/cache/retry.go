package cache

import (
	"context"
	"time"
)

// retryPolicy retries a call with exponential backoff.
type retryPolicy struct {
	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func (p retryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	retries := p.retries
	if retries < 0 {
		retries = 0
	}
	delay := p.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= retries || ctx.Err() != nil {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.maxDelay > 0 && delay > p.maxDelay {
			delay = p.maxDelay
		}
	}
}
