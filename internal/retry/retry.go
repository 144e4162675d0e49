// Package retry provides a small retry-with-backoff helper for transient
// failures against remote stores and services.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config controls retry behavior.
type Config struct {
	// Attempts is the maximum number of tries (including the first).
	Attempts int
	// BaseDelay is the delay before the second attempt; it doubles each retry.
	BaseDelay time.Duration
	// MaxDelay caps the per-retry delay. 0 = uncapped.
	MaxDelay time.Duration
}

// DefaultConfig returns the retry policy used for remote row loads:
// 3 attempts with 250ms base delay.
func DefaultConfig() Config {
	return Config{
		Attempts:  3,
		BaseDelay: 250 * time.Millisecond,
		MaxDelay:  2 * time.Second,
	}
}

// Permanent wraps an error to stop retrying immediately.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable; Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, the attempt budget is exhausted, or the
// context is canceled. The returned error is the last attempt's error,
// wrapped with the attempt count when the budget runs out.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt == cfg.Attempts {
			break
		}

		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("after %d attempts: %w", cfg.Attempts, lastErr)
}
