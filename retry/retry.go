// Package retry implements the exponential-backoff policy applied around
// payment requests.
package retry

import (
	"context"
	"time"
)

// Config bounds one retryable operation. It is consumed per operation, not
// persisted.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// RetryIf decides whether a failed attempt should be retried. When nil
	// every error is retried until MaxAttempts is reached.
	RetryIf func(error) bool
}

// DefaultConfig returns the standard payment retry budget: three attempts,
// one second base delay, ten second cap.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Delay returns the backoff delay applied after the given attempt, numbered
// from 1: BaseDelay doubled per attempt, capped at MaxDelay. The schedule is
// deterministic; no jitter is applied.
func (c Config) Delay(attempt int) time.Duration {
	d := c.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Do runs op until it succeeds or the attempt budget is exhausted. Attempts
// run strictly sequentially; the delay is measured from the failure of the
// previous attempt. The error from the final attempt is returned unchanged,
// never reclassified.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			break
		}
		if err := sleep(ctx, cfg.Delay(attempt)); err != nil {
			break
		}
	}
	return zero, lastErr
}

// sleep is replaced in tests to observe the delay schedule.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
