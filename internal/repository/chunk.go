package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/singlebitxyz/gulp/internal/model"
)

// ChunkRepo implements chunk persistence and the bot-scoped cosine vector
// search that backs the vector search component (C8).
type ChunkRepo struct {
	pool *pgxpool.Pool
}

// NewChunkRepo creates a ChunkRepo.
func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

// SearchResult is one row returned by vector search.
type SearchResult struct {
	ChunkID string
	Excerpt string
	Heading *string
	Score   float64
}

// BulkInsert stores chunks with their embedding vectors in one pgx batch.
// All-or-nothing: any failing row fails the whole call so the ingestion
// coordinator never leaves a source partially indexed.
func (r *ChunkRepo) BulkInsert(ctx context.Context, sourceID, botID string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()

	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		var embedding any
		if c.Embedding != nil {
			embedding = pgvector.NewVector(c.Embedding)
		}
		batch.Queue(`
			INSERT INTO chunks (id, source_id, bot_id, chunk_index, excerpt, heading, publish_date,
				char_start, char_end, tokens_estimate, embedding, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			id, sourceID, botID, c.ChunkIndex, c.Excerpt, c.Heading, c.PublishDate,
			c.CharRange.Start, c.CharRange.End, c.TokensEstimate, embedding, now,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("repository.ChunkRepo.BulkInsert: chunk %d: %w", i, err)
		}
	}
	return nil
}

// DeleteBySource removes all chunks belonging to a source, e.g. before a
// re-ingest of a previously failed source.
func (r *ChunkRepo) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chunks WHERE source_id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("repository.ChunkRepo.DeleteBySource: %w", err)
	}
	return nil
}

// CountBySource returns the number of chunks for a source.
func (r *ChunkRepo) CountBySource(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE source_id = $1`, sourceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.ChunkRepo.CountBySource: %w", err)
	}
	return count, nil
}

// Search performs the C8 contract: ANN search with cosine similarity scoped
// to bot_id, excluding chunks with no embedding, truncated to topK and
// filtered by minScore, ties broken by chunk_id ascending for determinism.
func (r *ChunkRepo) Search(ctx context.Context, botID string, queryVec []float32, topK int, minScore float64) ([]SearchResult, error) {
	embedding := pgvector.NewVector(queryVec)

	rows, err := r.pool.Query(ctx, `
		SELECT id, excerpt, heading, 1 - (embedding <=> $1::vector) AS score
		FROM chunks
		WHERE bot_id = $2 AND embedding IS NOT NULL
			AND (1 - (embedding <=> $1::vector)) >= $3
		ORDER BY score DESC, id ASC
		LIMIT $4`,
		embedding, botID, minScore, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.ChunkRepo.Search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var res SearchResult
		if err := rows.Scan(&res.ChunkID, &res.Excerpt, &res.Heading, &res.Score); err != nil {
			return nil, fmt.Errorf("repository.ChunkRepo.Search: scan: %w", err)
		}
		out = append(out, res)
	}
	return out, nil
}

// GetWithSource joins a chunk with its parent source for citation metadata
// (source_type/original_url/canonical_url/storage_path/filename).
func (r *ChunkRepo) GetWithSource(ctx context.Context, chunkID string) (*model.Chunk, *model.Source, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT c.id, c.source_id, c.bot_id, c.chunk_index, c.excerpt, c.heading, c.publish_date,
			c.char_start, c.char_end, c.tokens_estimate, c.created_at,
			s.id, s.bot_id, s.source_type, s.original_url, s.canonical_url, s.storage_path, s.filename,
			s.status, s.error_message, s.etag, s.last_modified, s.page_checksum, s.file_size, s.mime_type,
			s.created_at, s.updated_at
		FROM chunks c JOIN sources s ON c.source_id = s.id
		WHERE c.id = $1`, chunkID)

	var c model.Chunk
	var s model.Source
	err := row.Scan(
		&c.ID, &c.SourceID, &c.BotID, &c.ChunkIndex, &c.Excerpt, &c.Heading, &c.PublishDate,
		&c.CharRange.Start, &c.CharRange.End, &c.TokensEstimate, &c.CreatedAt,
		&s.ID, &s.BotID, &s.SourceType, &s.OriginalURL, &s.CanonicalURL, &s.StoragePath, &s.Filename,
		&s.Status, &s.ErrorMessage, &s.ETag, &s.LastModified, &s.PageChecksum, &s.FileSize, &s.MimeType,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("repository.ChunkRepo.GetWithSource: %w", err)
	}
	return &c, &s, nil
}
