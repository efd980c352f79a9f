package utils

import (
	"context"
	"math"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retry executes a function with exponential backoff retry.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if attempt < cfg.MaxAttempts-1 {
				time.Sleep(delay)
				delay = time.Duration(float64(delay) * cfg.BackoffFactor)
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			}
		} else {
			return nil
		}
	}

	return lastErr
}

// CalculateBackoff calculates the backoff duration for a given attempt.
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration, factor float64) time.Duration {
	delay := float64(initialDelay) * math.Pow(factor, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}

// Backoff tracks consecutive failures and yields an increasing wait between
// attempts. It is the anti-thrash safeguard for agents that keep coming up
// empty: each failure stretches the next wait, any success resets it.
type Backoff struct {
	initial  time.Duration
	max      time.Duration
	factor   float64
	attempts int
}

// NewBackoff creates a backoff tracker.
func NewBackoff(initial, max time.Duration, factor float64) *Backoff {
	return &Backoff{initial: initial, max: max, factor: factor}
}

// Next records a failure and returns the wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	d := CalculateBackoff(b.attempts, b.initial, b.max, b.factor)
	b.attempts++
	return d
}

// Reset clears the failure streak after a success.
func (b *Backoff) Reset() {
	b.attempts = 0
}

// Attempts returns the current consecutive-failure count.
func (b *Backoff) Attempts() int {
	return b.attempts
}
