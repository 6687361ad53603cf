package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/model"
	"github.com/singlebitxyz/gulp/internal/provider"
	"github.com/singlebitxyz/gulp/internal/repository"
)

// ChunkSearcher abstracts C8's bot-scoped vector search plus its
// metadata join.
type ChunkSearcher interface {
	Search(ctx context.Context, botID string, queryVec []float32, topK int, minScore float64) ([]repository.SearchResult, error)
	GetWithSource(ctx context.Context, chunkID string) (*model.Chunk, *model.Source, error)
}

// QueryLogStore abstracts query log persistence.
type QueryLogStore interface {
	Create(ctx context.Context, q *model.QueryLog) error
}

// QueryEngine implements the C11 contract: embed, search, compose,
// generate, score, cite, and persist a single RAG query end-to-end.
type QueryEngine struct {
	bots      BotLookup
	embedder  *EmbeddingOrchestrator
	chunks    ChunkSearcher
	composer  *PromptComposer
	chatModel map[string]provider.ChatProvider
	modelName map[string]string
	logs      QueryLogStore
}

// NewQueryEngine creates a QueryEngine.
func NewQueryEngine(
	bots BotLookup,
	embedder *EmbeddingOrchestrator,
	chunks ChunkSearcher,
	composer *PromptComposer,
	openai provider.ChatProvider,
	openaiModel string,
	gemini provider.ChatProvider,
	geminiModel string,
	logs QueryLogStore,
) *QueryEngine {
	return &QueryEngine{
		bots:     bots,
		embedder: embedder,
		chunks:   chunks,
		composer: composer,
		chatModel: map[string]provider.ChatProvider{
			openai.Name(): openai,
			gemini.Name(): gemini,
		},
		modelName: map[string]string{
			openai.Name(): openaiModel,
			gemini.Name(): geminiModel,
		},
		logs: logs,
	}
}

// QueryInput is the request shape for Query.
type QueryInput struct {
	BotID           string
	QueryText       string
	SessionID       string
	PageURL         *string
	History         []provider.ChatMessage
	IncludeMetadata bool
}

// QueryOutput is the C11 contract's response shape.
type QueryOutput struct {
	Answer           string
	Citations        []model.Citation
	Confidence       *float64
	SessionID        string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
}

// Query runs the full embed -> search -> compose -> generate -> log
// pipeline for a single question against a bot's knowledge base.
func (e *QueryEngine) Query(ctx context.Context, in QueryInput) (*QueryOutput, error) {
	start := time.Now()

	bot, err := e.bots.Get(ctx, in.BotID)
	if err != nil {
		return nil, fmt.Errorf("service.QueryEngine.Query: get bot: %w", err)
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	vectors, err := e.embedder.EmbedTexts(ctx, []string{in.QueryText}, string(bot.LLMProvider))
	if err != nil {
		return nil, fmt.Errorf("service.QueryEngine.Query: embed: %w", err)
	}

	results, err := e.chunks.Search(ctx, in.BotID, vectors[0], bot.TopK, bot.MinScore)
	if err != nil {
		return nil, fmt.Errorf("service.QueryEngine.Query: search: %w", err)
	}

	composed, err := e.composer.Compose(bot.SystemPrompt, results, in.History, in.QueryText, bot.LLMConfig.ModelName, bot.LLMConfig.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("service.QueryEngine.Query: compose: %w", err)
	}

	chatProvider, ok := e.chatModel[string(bot.LLMProvider)]
	if !ok {
		return nil, fmt.Errorf("service.QueryEngine.Query: unknown chat provider %q", bot.LLMProvider)
	}
	modelName := e.modelName[string(bot.LLMProvider)]

	genResult, err := chatProvider.Generate(ctx, bot.SystemPrompt, composed.Messages, modelName, bot.LLMConfig.Temperature, bot.LLMConfig.MaxTokens)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "chat generation failed", err)
	}
	if genResult.PromptTokens == 0 && genResult.CompletionTokens == 0 {
		// The provider reported no usage: estimate it with the C3 tokenizer.
		genResult.PromptTokens = e.composer.tok.CountTokens(bot.SystemPrompt, modelName)
		for _, m := range composed.Messages {
			genResult.PromptTokens += e.composer.tok.CountTokens(m.Content, modelName)
		}
		genResult.CompletionTokens = e.composer.tok.CountTokens(genResult.Text, modelName)
		genResult.TotalTokens = genResult.PromptTokens + genResult.CompletionTokens
	}

	confidence := meanScore(composed.Used)
	citations := buildCitations(ctx, e.chunks, composed.Used, in.IncludeMetadata)

	latency := time.Since(start)

	summary := genResult.Text
	if len(summary) > 500 {
		summary = summary[:500]
	}
	log := &model.QueryLog{
		BotID:            in.BotID,
		SessionID:        sessionID,
		QueryText:        in.QueryText,
		PageURL:          in.PageURL,
		ReturnedSources:  citations,
		ResponseSummary:  summary,
		TokensUsed:       genResult.TotalTokens,
		PromptTokens:     &genResult.PromptTokens,
		CompletionTokens: &genResult.CompletionTokens,
		Confidence:       confidence,
		LatencyMS:        latency.Milliseconds(),
	}
	if err := e.logs.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("service.QueryEngine.Query: persist query log: %w", err)
	}

	return &QueryOutput{
		Answer:           genResult.Text,
		Citations:        citations,
		Confidence:       confidence,
		SessionID:        sessionID,
		PromptTokens:     genResult.PromptTokens,
		CompletionTokens: genResult.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
	}, nil
}

// meanScore returns the arithmetic mean of used chunks' scores, or nil if
// there are none.
func meanScore(used []repository.SearchResult) *float64 {
	if len(used) == 0 {
		return nil
	}
	var sum float64
	for _, u := range used {
		sum += u.Score
	}
	mean := sum / float64(len(used))
	return &mean
}

// buildCitations returns one entry per retrieved chunk, joined with its
// source when metadata was requested.
func buildCitations(ctx context.Context, chunks ChunkSearcher, used []repository.SearchResult, includeMetadata bool) []model.Citation {
	citations := make([]model.Citation, 0, len(used))
	for _, u := range used {
		c := model.Citation{ChunkID: u.ChunkID, Heading: u.Heading, Score: u.Score}
		if includeMetadata {
			if _, src, err := chunks.GetWithSource(ctx, u.ChunkID); err == nil && src != nil {
				c.SourceType = &src.SourceType
				c.OriginalURL = src.OriginalURL
				c.CanonicalURL = src.CanonicalURL
				c.StoragePath = &src.StoragePath
				c.Filename = src.Filename
			}
		}
		citations = append(citations, c)
	}
	return citations
}
