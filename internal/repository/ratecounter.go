package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RateCounterRepo is the sole coordination point under contention for rate
// limiting: a per (bot_id, minute-window) counter incremented with a single
// round-trip conditional update.
type RateCounterRepo struct {
	pool *pgxpool.Pool
}

// NewRateCounterRepo creates a RateCounterRepo.
func NewRateCounterRepo(pool *pgxpool.Pool) *RateCounterRepo {
	return &RateCounterRepo{pool: pool}
}

// IncrementAndGet atomically increments the counter for (botID, windowStart)
// and returns the post-increment count, creating the row if absent. One
// round trip: INSERT ... ON CONFLICT DO UPDATE ... RETURNING.
func (r *RateCounterRepo) IncrementAndGet(ctx context.Context, botID string, windowStart time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO rate_counters (bot_id, window_start, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (bot_id, window_start) DO UPDATE SET count = rate_counters.count + 1
		RETURNING count`,
		botID, windowStart,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.RateCounterRepo.IncrementAndGet: %w", err)
	}
	return count, nil
}

// SweepExpired deletes rate counter rows older than one hour, per §5's
// periodic cleanup requirement.
func (r *RateCounterRepo) SweepExpired(ctx context.Context) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM rate_counters WHERE window_start < now() - interval '1 hour'`)
	if err != nil {
		return 0, fmt.Errorf("repository.RateCounterRepo.SweepExpired: %w", err)
	}
	return ct.RowsAffected(), nil
}
