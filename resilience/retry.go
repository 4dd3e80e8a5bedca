// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides the retry and circuit-breaker primitives used
// by the LLM provider manager and the agent layer.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"tripweaver/concierge/shared/apperrors"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int

	// InitialBackoff is the wait time before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait time between retries.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64

	// Jitter adds randomness to avoid thundering herd (0.0-1.0).
	Jitter float64

	// RetryIf determines if an error should be retried.
	RetryIf func(err error) bool
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryIf:        DefaultRetryable,
	}
}

// DefaultRetryable retries rate limits, timeouts, and upstream failures.
// Authentication and validation failures are never retried; a retry cannot
// fix a bad credential or a malformed request.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindRateLimit, apperrors.KindTimeout, apperrors.KindExternalAPI:
		return true
	}
	return err == context.DeadlineExceeded
}

// Retry executes fn with exponential backoff until it succeeds, the attempt
// budget is exhausted, or the context is cancelled. The last observed error
// is returned when all attempts fail.
func Retry[T any](ctx context.Context, config RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if config.RetryIf != nil && !config.RetryIf(err) {
			return zero, err
		}

		// No wait after the last attempt
		if attempt == attempts-1 {
			break
		}

		backoff := backoffFor(config, attempt)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return zero, lastErr
}

// backoffFor computes the delay before retry number attempt+1.
func backoffFor(config RetryConfig, attempt int) time.Duration {
	backoff := config.InitialBackoff
	if backoff <= 0 {
		backoff = 1 * time.Second
	}

	factor := config.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}

	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * factor)
		if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
			break
		}
	}
	if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
		backoff = config.MaxBackoff
	}

	if config.Jitter > 0 {
		jitterDelta := float64(backoff) * config.Jitter
		jitter := (rand.Float64() * 2 * jitterDelta) - jitterDelta
		backoff = time.Duration(float64(backoff) + jitter)
	}

	return backoff
}
