// Package retry provides bounded exponential backoff for transient provider
// failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted wraps the last error once every attempt has failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Config controls the backoff schedule.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultConfig matches the provider call policy: 3 attempts, doubling delay.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

// Result carries the attempt count alongside the terminal error.
type Result struct {
	Attempts int
}

// Do runs op up to cfg.MaxAttempts times, sleeping BaseDelay * Multiplier^n
// between attempts. retryable decides whether an error is worth another try;
// a non-retryable error is returned immediately. The returned Result reports
// how many attempts ran, for recording on the owning transaction.
func Do(ctx context.Context, cfg Config, op func() error, retryable func(error) bool) (Result, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return Result{Attempts: attempt}, nil
		}
		if retryable != nil && !retryable(lastErr) {
			return Result{Attempts: attempt}, lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Result{Attempts: attempt}, ctx.Err()
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return Result{Attempts: cfg.MaxAttempts},
		fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, cfg.MaxAttempts, lastErr)
}
