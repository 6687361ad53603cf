package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/singlebitxyz/gulp/internal/model"
)

func TestQueryLogRepo_CreateAndList(t *testing.T) {
	pool := setupPool(t)
	defer pool.Close()
	botRepo := NewBotRepo(pool)
	repo := NewQueryLogRepo(pool)
	ctx := context.Background()

	bot := newTestBot("owner-querylog-test")
	bot.RetentionDays = 1
	require.NoError(t, botRepo.Create(ctx, bot))

	confidence := 0.87
	q := &model.QueryLog{
		BotID:           bot.ID,
		SessionID:       "session-1",
		QueryText:       "What is Alpha?",
		ReturnedSources: []model.Citation{{ChunkID: "chunk-1", Score: 0.9}},
		ResponseSummary: "Alpha is a greek letter used as a placeholder.",
		TokensUsed:      42,
		Confidence:      &confidence,
		LatencyMS:       120,
	}
	require.NoError(t, repo.Create(ctx, q))
	require.NotEmpty(t, q.ID)

	list, err := repo.ListByBot(ctx, bot.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, q.QueryText, list[0].QueryText)
	require.Equal(t, q.ReturnedSources, list[0].ReturnedSources)
}

func TestQueryLogRepo_Create_NullConfidenceAllowed(t *testing.T) {
	pool := setupPool(t)
	defer pool.Close()
	botRepo := NewBotRepo(pool)
	repo := NewQueryLogRepo(pool)
	ctx := context.Background()

	bot := newTestBot("owner-querylog-nullconf")
	require.NoError(t, botRepo.Create(ctx, bot))

	q := &model.QueryLog{
		BotID:           bot.ID,
		SessionID:       "session-2",
		QueryText:       "empty retrieval case",
		ReturnedSources: []model.Citation{},
		ResponseSummary: "I don't have information about that.",
	}
	require.NoError(t, repo.Create(ctx, q))

	list, err := repo.ListByBot(ctx, bot.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Nil(t, list[0].Confidence)
}
