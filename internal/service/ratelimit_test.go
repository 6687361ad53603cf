package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

type mockRateCounterStore struct {
	count int
	err   error
}

func (m *mockRateCounterStore) IncrementAndGet(ctx context.Context, botID string, windowStart time.Time) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.count++
	return m.count, nil
}

func TestRateLimiterService_Allow_UnderLimit(t *testing.T) {
	store := &mockRateCounterStore{}
	s := NewRateLimiterService(store)

	for i := 0; i < 5; i++ {
		if err := s.Allow(context.Background(), "bot-1", 10); err != nil {
			t.Fatalf("Allow() call %d: %v", i, err)
		}
	}
}

func TestRateLimiterService_Allow_ExceedsLimit(t *testing.T) {
	store := &mockRateCounterStore{}
	s := NewRateLimiterService(store)

	for i := 0; i < 3; i++ {
		if err := s.Allow(context.Background(), "bot-1", 3); err != nil {
			t.Fatalf("Allow() call %d: %v", i, err)
		}
	}

	err := s.Allow(context.Background(), "bot-1", 3)
	if err == nil {
		t.Fatal("expected RateLimited error on 4th call with limit 3")
	}
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.RateLimited {
		t.Fatalf("expected apperr.RateLimited, got %v", err)
	}
	if ae.RetryAfterSeconds < 0 || ae.RetryAfterSeconds > 60 {
		t.Errorf("retry_after_s = %d, want within [0, 60]", ae.RetryAfterSeconds)
	}
}

func TestRateLimiterService_Allow_StoreError(t *testing.T) {
	store := &mockRateCounterStore{err: fmt.Errorf("db unavailable")}
	s := NewRateLimiterService(store)

	if err := s.Allow(context.Background(), "bot-1", 10); err == nil {
		t.Fatal("expected error when store fails")
	}
}
