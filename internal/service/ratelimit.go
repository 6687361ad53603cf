package service

import (
	"context"
	"fmt"
	"time"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

// RateCounterStore abstracts the atomic per-minute increment RateCounterRepo
// performs in a single round trip.
type RateCounterStore interface {
	IncrementAndGet(ctx context.Context, botID string, windowStart time.Time) (int, error)
}

// RateLimiterService implements the C13 contract over a DB-persisted counter.
type RateLimiterService struct {
	counters RateCounterStore
}

// NewRateLimiterService creates a RateLimiterService.
func NewRateLimiterService(counters RateCounterStore) *RateLimiterService {
	return &RateLimiterService{counters: counters}
}

// Allow increments the current minute's counter for botID and fails with
// RateLimited once count exceeds limitPerMinute.
func (s *RateLimiterService) Allow(ctx context.Context, botID string, limitPerMinute int) error {
	now := time.Now().UTC()
	windowStart := now.Truncate(time.Minute)

	count, err := s.counters.IncrementAndGet(ctx, botID, windowStart)
	if err != nil {
		return fmt.Errorf("service.RateLimiterService.Allow: %w", err)
	}

	if count > limitPerMinute {
		retryAfter := int(windowStart.Add(time.Minute).Sub(now).Seconds())
		if retryAfter < 0 {
			retryAfter = 0
		}
		return apperr.RateLimitedErr(retryAfter)
	}
	return nil
}
