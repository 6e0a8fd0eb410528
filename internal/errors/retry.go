package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff. Zero means uncapped.
	MaxDelay time.Duration

	// Multiplier is the growth factor between retries.
	Multiplier float64

	// Jitter scales each delay by a random factor in [0.5, 1.0).
	Jitter bool

	// AttemptTimeout bounds each individual attempt. Zero means no per-attempt
	// deadline. An attempt that hits it counts as a failure and is retried.
	AttemptTimeout time.Duration

	// OnRetry, if set, is called before sleeping for retry number attempt (1-based).
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns the scorer retry policy: 3 retries starting at
// 100ms and doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Backoff returns the delay before retry number attempt (1-based):
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func Backoff(cfg RetryConfig, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if cfg.MaxDelay > 0 && delay >= float64(cfg.MaxDelay) {
			return cfg.MaxDelay
		}
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}

// Retry executes fn with exponential backoff.
// If the parent context is cancelled, it returns the context error immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := RetryWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryWithResult executes fn with retry logic and returns its result.
// Each attempt receives its own context, bounded by AttemptTimeout when set.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := Backoff(cfg, attempt)
			if cfg.Jitter {
				delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
			}
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, delay, lastErr)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := runAttempt(ctx, cfg.AttemptTimeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := fn(attemptCtx)
	if err == nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		// fn ignored its context and returned late; treat as a timeout.
		var zero T
		return zero, New(ErrCodeScorerTimeout, fmt.Sprintf("attempt exceeded %s", timeout), context.DeadlineExceeded)
	}
	return result, err
}
