package stages

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy is the explicit retry configuration applied around one stage
// invocation. Retry logic lives here, independent of the stage bodies.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int

	// Delay is the wait before the first re-entry.
	Delay time.Duration

	// Backoff multiplies the delay after each failed attempt. Values at
	// or below 1 keep the delay fixed.
	Backoff float64
}

// Do invokes fn until it succeeds, the attempt budget is spent, or the
// error is not retryable. A retry re-enters the stage at running; the
// tracker's idempotent started_at keeps the original start time.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.Delay

	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		if !Retryable(err) || attempt == attempts {
			return err
		}

		logger.WarnContext(ctx, "Stage attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if p.Backoff > 1 {
			delay = time.Duration(float64(delay) * p.Backoff)
		}
	}

	return err
}
