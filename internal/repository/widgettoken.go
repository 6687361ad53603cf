package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/model"
)

// WidgetTokenRepo persists widget tokens. Only the SHA-256 hash of the
// plaintext is ever written or read back; the plaintext itself never reaches
// this layer.
type WidgetTokenRepo struct {
	pool *pgxpool.Pool
}

// NewWidgetTokenRepo creates a WidgetTokenRepo.
func NewWidgetTokenRepo(pool *pgxpool.Pool) *WidgetTokenRepo {
	return &WidgetTokenRepo{pool: pool}
}

// Create inserts a new widget token row.
func (r *WidgetTokenRepo) Create(ctx context.Context, t *model.WidgetToken) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now().UTC()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO widget_tokens (id, bot_id, token_hash, token_prefix, allowed_domains, expires_at, name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.BotID, t.TokenHash, t.TokenPrefix, t.AllowedDomains, t.ExpiresAt, t.Name, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.WidgetTokenRepo.Create: %w", err)
	}
	return nil
}

// ListByBot returns tokens for a bot (never including plaintext, which was
// never persisted in the first place).
func (r *WidgetTokenRepo) ListByBot(ctx context.Context, botID string) ([]*model.WidgetToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bot_id, token_prefix, allowed_domains, expires_at, name, last_used_at, created_at
		FROM widget_tokens WHERE bot_id = $1 ORDER BY created_at DESC`, botID)
	if err != nil {
		return nil, fmt.Errorf("repository.WidgetTokenRepo.ListByBot: %w", err)
	}
	defer rows.Close()

	var out []*model.WidgetToken
	for rows.Next() {
		var t model.WidgetToken
		if err := rows.Scan(&t.ID, &t.BotID, &t.TokenPrefix, &t.AllowedDomains, &t.ExpiresAt, &t.Name, &t.LastUsedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.WidgetTokenRepo.ListByBot: scan: %w", err)
		}
		out = append(out, &t)
	}
	return out, nil
}

// GetByHash looks up a token by its SHA-256 hash for validation.
func (r *WidgetTokenRepo) GetByHash(ctx context.Context, hash string) (*model.WidgetToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, bot_id, token_hash, token_prefix, allowed_domains, expires_at, name, last_used_at, created_at
		FROM widget_tokens WHERE token_hash = $1`, hash)

	var t model.WidgetToken
	err := row.Scan(&t.ID, &t.BotID, &t.TokenHash, &t.TokenPrefix, &t.AllowedDomains, &t.ExpiresAt, &t.Name, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "widget token not found")
		}
		return nil, fmt.Errorf("repository.WidgetTokenRepo.GetByHash: %w", err)
	}
	return &t, nil
}

// TouchLastUsed updates last_used_at best-effort; failures are not fatal to
// the calling request per the C12 validation contract.
func (r *WidgetTokenRepo) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE widget_tokens SET last_used_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository.WidgetTokenRepo.TouchLastUsed: %w", err)
	}
	return nil
}

// Delete revokes a token by id, scoped to botID.
func (r *WidgetTokenRepo) Delete(ctx context.Context, botID, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM widget_tokens WHERE id = $1 AND bot_id = $2`, id, botID)
	if err != nil {
		return fmt.Errorf("repository.WidgetTokenRepo.Delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "widget token not found")
	}
	return nil
}
