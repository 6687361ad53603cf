package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// retryDelays is the backoff schedule applied to transport-level rate limit
// errors from either provider's API.
var retryDelays = []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 2000 * time.Millisecond}

// isRetryableError reports whether err looks like a transient rate-limit or
// server error that is worth retrying within the same provider (up to
// len(retryDelays) more attempts, with backoff), as
// opposed to a permanent rejection (bad model, auth failure) that should
// fail fast so C6 can fail the batch over to the alternate provider.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "timeout")
}

// withRetry executes fn with a short backoff schedule for transient errors.
// It does not retry non-transient errors (auth, bad request, overflow) —
// those propagate immediately so the caller can classify them.
func withRetry[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err == nil || !isRetryableError(err) {
		return result, err
	}

	for i, delay := range retryDelays {
		slog.Warn("provider call rate limited, retrying",
			"operation", operation, "attempt", i+2, "delay_ms", delay.Milliseconds(), "error", err)

		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("provider.withRetry: %s: %w", operation, ctx.Err())
		case <-time.After(delay):
		}

		result, err = fn()
		if err == nil || !isRetryableError(err) {
			return result, err
		}
	}

	return result, err
}
