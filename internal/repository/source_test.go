package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/singlebitxyz/gulp/internal/model"
)

func createTestBotForSources(t *testing.T, repo *BotRepo) *model.Bot {
	t.Helper()
	b := newTestBot("owner-source-test")
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestSourceRepo_CreateGetListUpdateDelete(t *testing.T) {
	pool := setupPool(t)
	defer pool.Close()
	botRepo := NewBotRepo(pool)
	repo := NewSourceRepo(pool)
	ctx := context.Background()

	bot := createTestBotForSources(t, botRepo)

	s := &model.Source{
		BotID:       bot.ID,
		SourceType:  model.SourceTypeText,
		StoragePath: "bots/" + bot.ID + "/sources/x/file.txt",
		MimeType:    strPtr("text/plain"),
	}
	require.NoError(t, repo.Create(ctx, s))
	require.Equal(t, model.SourceStatusUploaded, s.Status)

	got, err := repo.Get(ctx, bot.ID, s.ID)
	require.NoError(t, err)
	require.Equal(t, s.StoragePath, got.StoragePath)

	list, err := repo.ListByBot(ctx, bot.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.UpdateStatus(ctx, s.ID, model.SourceStatusIndexed, nil))
	reread, err := repo.Get(ctx, bot.ID, s.ID)
	require.NoError(t, err)
	require.Equal(t, model.SourceStatusIndexed, reread.Status)

	errMsg := "parser rejected content"
	require.NoError(t, repo.UpdateStatus(ctx, s.ID, model.SourceStatusFailed, &errMsg))
	reread, err = repo.Get(ctx, bot.ID, s.ID)
	require.NoError(t, err)
	require.Equal(t, model.SourceStatusFailed, reread.Status)
	require.Equal(t, errMsg, *reread.ErrorMessage)

	require.NoError(t, repo.Delete(ctx, bot.ID, s.ID))
	_, err = repo.Get(ctx, bot.ID, s.ID)
	require.Error(t, err)
}

func TestSourceRepo_Get_WrongBotScopeNotFound(t *testing.T) {
	pool := setupPool(t)
	defer pool.Close()
	botRepo := NewBotRepo(pool)
	repo := NewSourceRepo(pool)
	ctx := context.Background()

	botA := createTestBotForSources(t, botRepo)
	botB := createTestBotForSources(t, botRepo)

	s := &model.Source{
		BotID:       botA.ID,
		SourceType:  model.SourceTypeText,
		StoragePath: "bots/" + botA.ID + "/sources/x/file.txt",
	}
	require.NoError(t, repo.Create(ctx, s))

	_, err := repo.Get(ctx, botB.ID, s.ID)
	require.Error(t, err, "a source must not be readable through a different bot's scope")
}

func strPtr(s string) *string { return &s }
