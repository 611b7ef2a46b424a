package upstream

import (
	"context"
	"time"
)

// Backoff configures retry backoff for retryable errors.
type Backoff struct {
	InitialDelay time.Duration // default 200ms
	MaxDelay     time.Duration // default 2s
	MaxAttempts  int           // total attempts including the first, default 3
	Multiplier   float64       // default 2.0
}

// DefaultBackoff is three attempts at 200ms, 400ms.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		MaxAttempts:  3,
		Multiplier:   2.0,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.InitialDelay <= 0 {
		b.InitialDelay = d.InitialDelay
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = d.MaxDelay
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = d.MaxAttempts
	}
	if b.Multiplier < 1 {
		b.Multiplier = d.Multiplier
	}
	return b
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. The last error is returned on exhaustion.
// onRetry, when non-nil, is called before each repeated attempt.
func Retry[T any](ctx context.Context, b Backoff, fn func(ctx context.Context) (T, error), onRetry func(attempt int, err error)) (T, error) {
	b = b.withDefaults()

	var zero T
	var lastErr error
	delay := b.InitialDelay

	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		if attempt > 0 {
			if onRetry != nil {
				onRetry(attempt, lastErr)
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}

			delay = time.Duration(float64(delay) * b.Multiplier)
			if delay > b.MaxDelay {
				delay = b.MaxDelay
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
