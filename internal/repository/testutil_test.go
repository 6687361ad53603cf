package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupPool connects to DATABASE_URL (skipping the test if unset) and
// ensures the schema exists, retrying because other test packages in this
// module may concurrently drop/recreate tables via the migrations package.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dbURL, 5)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	migrationSQL, err := os.ReadFile("../../migrations/001_initial_schema.up.sql")
	if err != nil {
		pool.Close()
		t.Fatalf("read migration: %v", err)
	}

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		if _, lastErr = pool.Exec(ctx, string(migrationSQL)); lastErr == nil {
			break
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	if lastErr != nil {
		pool.Close()
		t.Fatalf("ensure schema after retries: %v", lastErr)
	}

	return pool
}
