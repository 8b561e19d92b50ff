// Package retry runs an operation under a bounded, fixed-delay retry policy.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultAttempts is the download attempt budget.
	DefaultAttempts = 5
	// DefaultDelay is the pause between attempts.
	DefaultDelay = 30 * time.Second
)

// Policy describes how often and how patiently to retry.
type Policy struct {
	// MaxAttempts counts the first try. Values below 1 mean 1.
	MaxAttempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// Clock sleeps between attempts. Default: RealClock.
	Clock Clock
	// Retryable decides whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool
	// OnRetry, when set, is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// Default returns the policy used for package downloads.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultAttempts,
		Delay:       DefaultDelay,
		Clock:       RealClock{},
	}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs op until it succeeds, returns a non-retryable error, the attempt
// budget runs out, or ctx is done.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if attempt > 1 {
			if err := clock.Sleep(ctx, p.Delay); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt < attempts && p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}

	return &ExhaustedError{Attempts: attempts, Last: lastErr}
}
