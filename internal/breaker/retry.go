// v0
// internal/breaker/retry.go
package breaker

import (
	"context"
	"errors"
	"time"
)

// Retry bounds repeated attempts of an idempotent operation.
type Retry struct {
	Attempts int           // total attempts, at least 1
	Backoff  time.Duration // pause between attempts
	Timeout  time.Duration // per-attempt deadline; zero disables it
}

// Do runs op through the breaker until it succeeds, the attempts are
// exhausted or ctx ends. Errors for which retryable returns false stop the
// loop immediately. A nil retryable retries every error except ErrOpen.
func (r Retry) Do(ctx context.Context, b *Breaker, retryable func(error) bool, op func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		attemptCtx, cancel := r.withAttemptContext(ctx)
		if b != nil {
			err = b.Execute(attemptCtx, op)
		} else {
			err = op(attemptCtx)
		}
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrOpen) {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if waitErr := r.waitBackoff(ctx); waitErr != nil {
			return waitErr
		}
	}
	return err
}

func (r Retry) withAttemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.Timeout)
}

func (r Retry) waitBackoff(ctx context.Context) error {
	if r.Backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(r.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
