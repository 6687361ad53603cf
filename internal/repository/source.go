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

// SourceRepo persists sources: per-bot ingestion units tracked through the
// uploaded -> parsing -> indexed/failed state machine.
type SourceRepo struct {
	pool *pgxpool.Pool
}

// NewSourceRepo creates a SourceRepo.
func NewSourceRepo(pool *pgxpool.Pool) *SourceRepo {
	return &SourceRepo{pool: pool}
}

// Create inserts a new source row with status=uploaded.
func (r *SourceRepo) Create(ctx context.Context, s *model.Source) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	if s.Status == "" {
		s.Status = model.SourceStatusUploaded
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO sources (id, bot_id, source_type, original_url, canonical_url, storage_path,
			filename, status, error_message, etag, last_modified, page_checksum, file_size, mime_type,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		s.ID, s.BotID, s.SourceType, s.OriginalURL, s.CanonicalURL, s.StoragePath,
		s.Filename, s.Status, s.ErrorMessage, s.ETag, s.LastModified, s.PageChecksum, s.FileSize, s.MimeType,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.SourceRepo.Create: %w", err)
	}
	return nil
}

// Get fetches a source by id, scoped to botID so cross-tenant ids never match.
func (r *SourceRepo) Get(ctx context.Context, botID, id string) (*model.Source, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, bot_id, source_type, original_url, canonical_url, storage_path, filename,
			status, error_message, etag, last_modified, page_checksum, file_size, mime_type,
			created_at, updated_at
		FROM sources WHERE id = $1 AND bot_id = $2`, id, botID)
	return scanSource(row)
}

// ListByBot returns all sources for a bot, most recent first.
func (r *SourceRepo) ListByBot(ctx context.Context, botID string) ([]*model.Source, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bot_id, source_type, original_url, canonical_url, storage_path, filename,
			status, error_message, etag, last_modified, page_checksum, file_size, mime_type,
			created_at, updated_at
		FROM sources WHERE bot_id = $1 ORDER BY created_at DESC`, botID)
	if err != nil {
		return nil, fmt.Errorf("repository.SourceRepo.ListByBot: %w", err)
	}
	defer rows.Close()

	var out []*model.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// UpdateStatus transitions a source's status, optionally setting error_message.
func (r *SourceRepo) UpdateStatus(ctx context.Context, id string, status model.SourceStatus, errMsg *string) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE sources SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`,
		id, status, errMsg, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository.SourceRepo.UpdateStatus: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "source not found")
	}
	return nil
}

// UpdateCrawlMetadata records the crawler's dedup hints after a (re)fetch.
func (r *SourceRepo) UpdateCrawlMetadata(ctx context.Context, id string, canonicalURL *string, etag, lastModified, checksum *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sources SET canonical_url = $2, etag = $3, last_modified = $4, page_checksum = $5, updated_at = $6
		WHERE id = $1`,
		id, canonicalURL, etag, lastModified, checksum, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository.SourceRepo.UpdateCrawlMetadata: %w", err)
	}
	return nil
}

// Delete removes a source; cascading foreign keys remove its chunks.
func (r *SourceRepo) Delete(ctx context.Context, botID, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM sources WHERE id = $1 AND bot_id = $2`, id, botID)
	if err != nil {
		return fmt.Errorf("repository.SourceRepo.Delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "source not found")
	}
	return nil
}

func scanSource(row rowScanner) (*model.Source, error) {
	var s model.Source
	err := row.Scan(
		&s.ID, &s.BotID, &s.SourceType, &s.OriginalURL, &s.CanonicalURL, &s.StoragePath, &s.Filename,
		&s.Status, &s.ErrorMessage, &s.ETag, &s.LastModified, &s.PageChecksum, &s.FileSize, &s.MimeType,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "source not found")
		}
		return nil, fmt.Errorf("repository.scanSource: %w", err)
	}
	return &s, nil
}
