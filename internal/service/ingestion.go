package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/model"
	"github.com/singlebitxyz/gulp/internal/objectstore"
)

var (
	processingMu sync.Mutex
	processing   = make(map[string]bool)
)

// SourceStore abstracts the source-status state machine persisted by
// repository.SourceRepo.
type SourceStore interface {
	Get(ctx context.Context, botID, id string) (*model.Source, error)
	UpdateStatus(ctx context.Context, id string, status model.SourceStatus, errMsg *string) error
	UpdateCrawlMetadata(ctx context.Context, id string, canonicalURL *string, etag, lastModified, checksum *string) error
}

// ChunkInserter abstracts all-or-nothing persistence of chunks with vectors.
type ChunkInserter interface {
	BulkInsert(ctx context.Context, sourceID, botID string, chunks []model.Chunk) error
	DeleteBySource(ctx context.Context, sourceID string) error
}

// BotLookup resolves a bot's preferred embedding provider and model names.
type BotLookup interface {
	Get(ctx context.Context, id string) (*model.Bot, error)
}

// IngestionCoordinator drives the C7 per-source state machine:
// uploaded -> parsing -> indexed (success) or parsing -> failed (any error).
type IngestionCoordinator struct {
	sources   SourceStore
	bots      BotLookup
	chunks    ChunkInserter
	store     objectstore.Store
	parser    *ParserService
	crawler   *CrawlerService
	chunker   *Chunker
	embedder  *EmbeddingOrchestrator
}

// NewIngestionCoordinator creates an IngestionCoordinator.
func NewIngestionCoordinator(
	sources SourceStore,
	bots BotLookup,
	chunks ChunkInserter,
	store objectstore.Store,
	parser *ParserService,
	crawler *CrawlerService,
	chunker *Chunker,
	embedder *EmbeddingOrchestrator,
) *IngestionCoordinator {
	return &IngestionCoordinator{
		sources:  sources,
		bots:     bots,
		chunks:   chunks,
		store:    store,
		parser:   parser,
		crawler:  crawler,
		chunker:  chunker,
		embedder: embedder,
	}
}

// ProcessSource runs the full ingestion pipeline for one source. It is
// designed to be invoked by the job queue consumer, never directly by an
// HTTP handler.
func (c *IngestionCoordinator) ProcessSource(ctx context.Context, botID, sourceID string) error {
	processingMu.Lock()
	if processing[sourceID] {
		processingMu.Unlock()
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: source %s is already being processed", sourceID)
	}
	processing[sourceID] = true
	processingMu.Unlock()
	defer func() {
		processingMu.Lock()
		delete(processing, sourceID)
		processingMu.Unlock()
	}()

	src, err := c.sources.Get(ctx, botID, sourceID)
	if err != nil {
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: get source: %w", err)
	}

	bot, err := c.bots.Get(ctx, botID)
	if err != nil {
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: get bot: %w", err)
	}

	slog.Info("ingestion starting", "source_id", sourceID, "bot_id", botID, "source_type", src.SourceType)

	if err := c.sources.UpdateStatus(ctx, sourceID, model.SourceStatusParsing, nil); err != nil {
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: set parsing: %w", err)
	}

	text, title, err := c.extract(ctx, src)
	if err != nil {
		c.fail(ctx, sourceID, err)
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: extract: %w", err)
	}
	if text == "" {
		appErr := apperr.New(apperr.EmptyContent, "no extractable content")
		c.fail(ctx, sourceID, appErr)
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: %w", appErr)
	}

	urlLastSeg := ""
	if src.OriginalURL != nil {
		urlLastSeg = urlLastSegment(*src.OriginalURL)
	}
	chunks := c.chunker.Chunk(text, title, urlLastSeg, bot.LLMConfig.ModelName)
	if len(chunks) == 0 {
		appErr := apperr.New(apperr.EmptyContent, "chunking produced no chunks")
		c.fail(ctx, sourceID, appErr)
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: %w", appErr)
	}
	slog.Info("ingestion chunked", "source_id", sourceID, "chunk_count", len(chunks))

	excerpts := make([]string, len(chunks))
	for i, ch := range chunks {
		excerpts[i] = ch.Excerpt
		chunks[i].SourceID = sourceID
		chunks[i].BotID = botID
	}

	vectors, err := c.embedder.EmbedTexts(ctx, excerpts, string(bot.LLMProvider))
	if err != nil {
		c.fail(ctx, sourceID, err)
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: embed: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	// All-or-nothing: drop any stale chunks from a previous failed attempt
	// before inserting the freshly embedded set.
	if err := c.chunks.DeleteBySource(ctx, sourceID); err != nil {
		c.fail(ctx, sourceID, err)
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: delete stale chunks: %w", err)
	}
	if err := c.chunks.BulkInsert(ctx, sourceID, botID, chunks); err != nil {
		c.fail(ctx, sourceID, err)
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: insert chunks: %w", err)
	}

	if err := c.sources.UpdateStatus(ctx, sourceID, model.SourceStatusIndexed, nil); err != nil {
		return fmt.Errorf("service.IngestionCoordinator.ProcessSource: set indexed: %w", err)
	}

	slog.Info("ingestion completed", "source_id", sourceID, "chunk_count", len(chunks))
	return nil
}

// extract dispatches to the crawler for URL-based sources or the parser for
// uploaded files, returning the extracted text and a title for heading
// fallback.
func (c *IngestionCoordinator) extract(ctx context.Context, src *model.Source) (text, title string, err error) {
	if src.SourceType.IsURLBased() {
		if src.OriginalURL == nil {
			return "", "", apperr.New(apperr.ValidationFailed, "html source missing original_url")
		}
		result, err := c.crawler.Crawl(ctx, *src.OriginalURL)
		if err != nil {
			return "", "", err
		}
		if err := c.sources.UpdateCrawlMetadata(ctx, src.ID, &result.CanonicalURL, strPtr(result.ETag), strPtr(result.LastModified), strPtr(result.Checksum)); err != nil {
			slog.Warn("ingestion failed to record crawl metadata", "source_id", src.ID, "error", err)
		}
		return result.Text, result.Title, nil
	}

	filename := ""
	if src.Filename != nil {
		filename = *src.Filename
	}
	parsed, err := c.parser.Extract(ctx, src.StoragePath, filename)
	if err != nil {
		return "", "", err
	}
	return parsed.Text, "", nil
}

func (c *IngestionCoordinator) fail(ctx context.Context, sourceID string, cause error) {
	msg := cause.Error()
	if ctx.Err() != nil {
		// The task's context was cancelled: record that, on a context that
		// can still reach the database.
		msg = "cancelled"
		ctx = context.WithoutCancel(ctx)
	}
	if err := c.sources.UpdateStatus(ctx, sourceID, model.SourceStatusFailed, &msg); err != nil {
		slog.Error("ingestion failed to record failure status", "source_id", sourceID, "error", err)
	}
	slog.Error("ingestion failed", "source_id", sourceID, "cause", cause)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
