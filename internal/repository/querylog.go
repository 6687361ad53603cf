package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/singlebitxyz/gulp/internal/model"
)

// QueryLogRepo persists query logs and implements retention purging.
type QueryLogRepo struct {
	pool *pgxpool.Pool
}

// NewQueryLogRepo creates a QueryLogRepo.
func NewQueryLogRepo(pool *pgxpool.Pool) *QueryLogRepo {
	return &QueryLogRepo{pool: pool}
}

// Create persists a query log row.
func (r *QueryLogRepo) Create(ctx context.Context, q *model.QueryLog) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	q.CreatedAt = time.Now().UTC()

	sources, err := json.Marshal(q.ReturnedSources)
	if err != nil {
		return fmt.Errorf("repository.QueryLogRepo.Create: marshal returned_sources: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO query_logs (id, bot_id, session_id, query_text, page_url, returned_sources,
			response_summary, tokens_used, prompt_tokens, completion_tokens, confidence, latency_ms,
			user_feedback, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		q.ID, q.BotID, q.SessionID, q.QueryText, q.PageURL, sources,
		q.ResponseSummary, q.TokensUsed, q.PromptTokens, q.CompletionTokens, q.Confidence, q.LatencyMS,
		q.UserFeedback, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.QueryLogRepo.Create: %w", err)
	}
	return nil
}

// ListByBot returns recent query logs for a bot, most recent first.
func (r *QueryLogRepo) ListByBot(ctx context.Context, botID string, limit int) ([]*model.QueryLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bot_id, session_id, query_text, page_url, returned_sources, response_summary,
			tokens_used, prompt_tokens, completion_tokens, confidence, latency_ms, user_feedback, created_at
		FROM query_logs WHERE bot_id = $1 ORDER BY created_at DESC LIMIT $2`, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.QueryLogRepo.ListByBot: %w", err)
	}
	defer rows.Close()

	var out []*model.QueryLog
	for rows.Next() {
		var q model.QueryLog
		var sources []byte
		err := rows.Scan(&q.ID, &q.BotID, &q.SessionID, &q.QueryText, &q.PageURL, &sources,
			&q.ResponseSummary, &q.TokensUsed, &q.PromptTokens, &q.CompletionTokens, &q.Confidence,
			&q.LatencyMS, &q.UserFeedback, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.QueryLogRepo.ListByBot: scan: %w", err)
		}
		if err := json.Unmarshal(sources, &q.ReturnedSources); err != nil {
			return nil, fmt.Errorf("repository.QueryLogRepo.ListByBot: unmarshal returned_sources: %w", err)
		}
		out = append(out, &q)
	}
	return out, nil
}

// PurgeExpired deletes query logs older than each bot's retention_days. Meant
// to be invoked by a periodic background task, per the spec's retention note.
func (r *QueryLogRepo) PurgeExpired(ctx context.Context) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		DELETE FROM query_logs q
		USING bots b
		WHERE q.bot_id = b.id
			AND q.created_at < now() - (b.retention_days || ' days')::interval`,
	)
	if err != nil {
		return 0, fmt.Errorf("repository.QueryLogRepo.PurgeExpired: %w", err)
	}
	return ct.RowsAffected(), nil
}
