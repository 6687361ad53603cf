package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/model"
)

// BotRepo persists bots and enforces ownership at every read/write.
type BotRepo struct {
	pool *pgxpool.Pool
}

// NewBotRepo creates a BotRepo.
func NewBotRepo(pool *pgxpool.Pool) *BotRepo {
	return &BotRepo{pool: pool}
}

// Create inserts a new bot owned by ownerID.
func (r *BotRepo) Create(ctx context.Context, b *model.Bot) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now

	cfg, err := json.Marshal(b.LLMConfig)
	if err != nil {
		return fmt.Errorf("repository.BotRepo.Create: marshal llm_config: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO bots (id, owner_id, name, description, system_prompt, llm_provider, llm_config,
			retention_days, rate_limit_per_minute, top_k, min_score, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		b.ID, b.OwnerID, b.Name, b.Description, b.SystemPrompt, b.LLMProvider, cfg,
		b.RetentionDays, b.RateLimitPerMin, b.TopK, b.MinScore, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.BotRepo.Create: %w", err)
	}
	return nil
}

// Get fetches a bot by id without an ownership check (internal use, e.g. by
// widget-token resolved scope). Callers that act on behalf of a user
// principal MUST additionally call CheckOwnership.
func (r *BotRepo) Get(ctx context.Context, id string) (*model.Bot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, system_prompt, llm_provider, llm_config,
			retention_days, rate_limit_per_minute, top_k, min_score, created_at, updated_at
		FROM bots WHERE id = $1`, id)
	return scanBot(row)
}

// ListByOwner returns all bots owned by ownerID.
func (r *BotRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Bot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, description, system_prompt, llm_provider, llm_config,
			retention_days, rate_limit_per_minute, top_k, min_score, created_at, updated_at
		FROM bots WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("repository.BotRepo.ListByOwner: %w", err)
	}
	defer rows.Close()

	var out []*model.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Update applies the mutable fields of b. Only owner-writable fields are
// touched; id/owner_id/created_at are immutable.
func (r *BotRepo) Update(ctx context.Context, b *model.Bot) error {
	cfg, err := json.Marshal(b.LLMConfig)
	if err != nil {
		return fmt.Errorf("repository.BotRepo.Update: marshal llm_config: %w", err)
	}
	b.UpdatedAt = time.Now().UTC()

	ct, err := r.pool.Exec(ctx, `
		UPDATE bots SET name=$2, description=$3, system_prompt=$4, llm_provider=$5, llm_config=$6,
			retention_days=$7, rate_limit_per_minute=$8, top_k=$9, min_score=$10, updated_at=$11
		WHERE id=$1`,
		b.ID, b.Name, b.Description, b.SystemPrompt, b.LLMProvider, cfg,
		b.RetentionDays, b.RateLimitPerMin, b.TopK, b.MinScore, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.BotRepo.Update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "bot not found")
	}
	return nil
}

// Delete removes a bot; cascading foreign keys remove its sources, chunks,
// query logs, widget tokens, and rate counters.
func (r *BotRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM bots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.BotRepo.Delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "bot not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBot(row rowScanner) (*model.Bot, error) {
	var b model.Bot
	var cfg []byte
	err := row.Scan(
		&b.ID, &b.OwnerID, &b.Name, &b.Description, &b.SystemPrompt, &b.LLMProvider, &cfg,
		&b.RetentionDays, &b.RateLimitPerMin, &b.TopK, &b.MinScore, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "bot not found")
		}
		return nil, fmt.Errorf("repository.scanBot: %w", err)
	}
	if err := json.Unmarshal(cfg, &b.LLMConfig); err != nil {
		return nil, fmt.Errorf("repository.scanBot: unmarshal llm_config: %w", err)
	}
	return &b, nil
}
