// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"tripweaver/concierge/shared/apperrors"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	start := time.Now()
	result, err := Retry(ctx, RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 20 * time.Millisecond,
		BackoffFactor:  2.0,
		RetryIf:        DefaultRetryable,
	}, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", apperrors.RateLimit("llm-manager", "throttled")
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %q", result)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	// Two backoff sleeps: 20ms + 40ms
	if elapsed < 60*time.Millisecond {
		t.Errorf("elapsed %v is shorter than the summed backoff delays", elapsed)
	}
}

func TestRetryDoesNotRetryAuthErrors(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	_, err := Retry(ctx, DefaultRetryConfig(), func(context.Context) (int, error) {
		attempts++
		return 0, apperrors.Authentication("llm-manager", "invalid key")
	})

	if attempts != 1 {
		t.Errorf("auth errors must not be retried, got %d attempts", attempts)
	}
	if !apperrors.IsKind(err, apperrors.KindAuthentication) {
		t.Errorf("expected authentication error, got %v", err)
	}
}

func TestRetryExhaustsBudgetAndReturnsLastError(t *testing.T) {
	ctx := context.Background()
	attempts := 0
	last := apperrors.Timeout("agent", "lodging timed out")

	_, err := Retry(ctx, RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  2.0,
		RetryIf:        DefaultRetryable,
	}, func(context.Context) (struct{}, error) {
		attempts++
		return struct{}{}, last
	})

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, last) {
		t.Errorf("expected last error returned, got %v", err)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		BackoffFactor:  2.0,
		RetryIf:        DefaultRetryable,
	}, func(context.Context) (struct{}, error) {
		return struct{}{}, apperrors.RateLimit("llm-manager", "throttled")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled during backoff, got %v", err)
	}
}

func TestBackoffForCapsAtMax(t *testing.T) {
	config := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     3 * time.Second,
		BackoffFactor:  2.0,
	}

	if got := backoffFor(config, 0); got != time.Second {
		t.Errorf("attempt 0 backoff = %v, want 1s", got)
	}
	if got := backoffFor(config, 5); got != 3*time.Second {
		t.Errorf("attempt 5 backoff = %v, want capped 3s", got)
	}
}
