package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateCounterRepo_IncrementAndGet(t *testing.T) {
	pool := setupPool(t)
	defer pool.Close()
	botRepo := NewBotRepo(pool)
	repo := NewRateCounterRepo(pool)
	ctx := context.Background()

	bot := newTestBot("owner-rate-test")
	require.NoError(t, botRepo.Create(ctx, bot))

	window := time.Now().UTC().Truncate(time.Minute)

	for i := 1; i <= 3; i++ {
		count, err := repo.IncrementAndGet(ctx, bot.ID, window)
		require.NoError(t, err)
		require.Equal(t, i, count)
	}
}

func TestRateCounterRepo_SeparateWindowsDoNotInterfere(t *testing.T) {
	pool := setupPool(t)
	defer pool.Close()
	botRepo := NewBotRepo(pool)
	repo := NewRateCounterRepo(pool)
	ctx := context.Background()

	bot := newTestBot("owner-rate-windows")
	require.NoError(t, botRepo.Create(ctx, bot))

	w1 := time.Now().UTC().Truncate(time.Minute)
	w2 := w1.Add(time.Minute)

	c1, err := repo.IncrementAndGet(ctx, bot.ID, w1)
	require.NoError(t, err)
	require.Equal(t, 1, c1)

	c2, err := repo.IncrementAndGet(ctx, bot.ID, w2)
	require.NoError(t, err)
	require.Equal(t, 1, c2, "a new minute window must start its own count")
}

func TestRateCounterRepo_SweepExpired(t *testing.T) {
	pool := setupPool(t)
	defer pool.Close()
	botRepo := NewBotRepo(pool)
	repo := NewRateCounterRepo(pool)
	ctx := context.Background()

	bot := newTestBot("owner-rate-sweep")
	require.NoError(t, botRepo.Create(ctx, bot))

	old := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Minute)
	_, err := repo.IncrementAndGet(ctx, bot.ID, old)
	require.NoError(t, err)

	_, err = repo.SweepExpired(ctx)
	require.NoError(t, err)

	// Old window should be gone; incrementing it again starts from 1.
	count, err := repo.IncrementAndGet(ctx, bot.ID, old)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
