// pkg/retry/retry.go
package retry

import (
	"context"
	"time"
)

// Do runs operation, retrying transient failures with the given backoff
// until it succeeds, a non-transient error occurs, the attempt budget is
// spent, or ctx is cancelled. onRetry, when non-nil, is invoked before
// each wait.
func Do(
	ctx context.Context,
	backoff *Backoff,
	operation func(ctx context.Context) error,
	onRetry func(attempt int, err error, delay time.Duration),
) error {
	lastErr := operation(ctx)
	if lastErr == nil {
		return nil
	}
	if !Transient(lastErr) {
		return lastErr
	}

	for attempt := 0; attempt < backoff.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay := backoff.NextDelay(attempt)
		if onRetry != nil {
			onRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}
		if !Transient(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
