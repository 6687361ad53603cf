package provider

import (
	"context"
	"fmt"
	"testing"
)

func TestWithRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := withRetry(context.Background(), "test", func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("got=%d calls=%d, want 42/1", got, calls)
	}
}

func TestWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), "test", func() (int, error) {
		calls++
		return 0, fmt.Errorf("invalid api key")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for non-transient error)", calls)
	}
}

func TestWithRetry_RetriesOnRateLimit(t *testing.T) {
	calls := 0
	got, err := withRetry(context.Background(), "test", func() (int, error) {
		calls++
		if calls < 2 {
			return 0, fmt.Errorf("429 rate limit exceeded")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if got != 7 || calls != 2 {
		t.Errorf("got=%d calls=%d, want 7/2", got, calls)
	}
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := withRetry(ctx, "test", func() (int, error) {
		return 0, fmt.Errorf("503 service unavailable")
	})
	if err == nil {
		t.Fatal("expected error when context is already cancelled")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{fmt.Errorf("429 Too Many Requests"), true},
		{fmt.Errorf("RESOURCE_EXHAUSTED: quota exceeded"), true},
		{fmt.Errorf("503 Service Unavailable"), true},
		{fmt.Errorf("invalid api key"), false},
		{fmt.Errorf("model not found"), false},
	}
	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
