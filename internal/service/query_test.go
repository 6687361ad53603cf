package service

import (
	"context"
	"testing"

	"github.com/singlebitxyz/gulp/internal/model"
	"github.com/singlebitxyz/gulp/internal/provider"
	"github.com/singlebitxyz/gulp/internal/repository"
)

type mockChunkSearcher struct {
	results []repository.SearchResult
	source  *model.Source
}

func (m *mockChunkSearcher) Search(ctx context.Context, botID string, queryVec []float32, topK int, minScore float64) ([]repository.SearchResult, error) {
	return m.results, nil
}

func (m *mockChunkSearcher) GetWithSource(ctx context.Context, chunkID string) (*model.Chunk, *model.Source, error) {
	return &model.Chunk{ID: chunkID}, m.source, nil
}

type mockChatProvider struct {
	name   string
	result *provider.ChatResult
	err    error
}

func (m *mockChatProvider) Name() string { return m.name }

func (m *mockChatProvider) Generate(ctx context.Context, system string, messages []provider.ChatMessage, model string, temperature float64, maxTokens int) (*provider.ChatResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockQueryLogStore struct {
	created []*model.QueryLog
}

func (m *mockQueryLogStore) Create(ctx context.Context, q *model.QueryLog) error {
	m.created = append(m.created, q)
	return nil
}

func testQueryBot() *model.Bot {
	return &model.Bot{
		ID:           "bot-1",
		SystemPrompt: "You are a helpful assistant.",
		LLMProvider:  model.ProviderOpenAI,
		LLMConfig:    model.LLMConfig{ModelName: "gpt-test", Temperature: 0.2, MaxTokens: 500},
		TopK:         5,
		MinScore:     0.25,
	}
}

func newTestQueryEngine(bot *model.Bot, searcher *mockChunkSearcher, chat *mockChatProvider, logs *mockQueryLogStore) *QueryEngine {
	embedder := newTestOrchestrator(&mockEmbeddingProvider{name: "openai", dim: 4}, &mockEmbeddingProvider{name: "gemini", dim: 4}, 64)
	composer := NewPromptComposer(ComposerConfig{ModelMaxTokens: 100000, SafetyMargin: 100}, NewTokenizer())
	return NewQueryEngine(&mockBotLookup{bot: bot}, embedder, searcher, composer, chat, "gpt-test", &mockChatProvider{name: "gemini"}, "gemini-test", logs)
}

func TestQueryEngine_Query_Success(t *testing.T) {
	searcher := &mockChunkSearcher{results: []repository.SearchResult{
		{ChunkID: "c1", Excerpt: "Answer content", Score: 0.9},
		{ChunkID: "c2", Excerpt: "More content", Score: 0.7},
	}}
	chat := &mockChatProvider{name: "openai", result: &provider.ChatResult{
		Text: "Here is the answer.", PromptTokens: 42, CompletionTokens: 8, TotalTokens: 50,
	}}
	logs := &mockQueryLogStore{}

	e := newTestQueryEngine(testQueryBot(), searcher, chat, logs)

	out, err := e.Query(context.Background(), QueryInput{BotID: "bot-1", QueryText: "What is the answer?"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if out.Answer != "Here is the answer." {
		t.Errorf("answer = %q", out.Answer)
	}
	if out.Confidence == nil || abs(*out.Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %v, want 0.8", out.Confidence)
	}
	if len(out.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(out.Citations))
	}
	if out.SessionID == "" {
		t.Error("expected a generated session id when none was supplied")
	}
	if len(logs.created) != 1 {
		t.Fatalf("expected one query log persisted, got %d", len(logs.created))
	}
	if logs.created[0].Confidence == nil || abs(*logs.created[0].Confidence-0.8) > 1e-9 {
		t.Errorf("persisted confidence = %v, want 0.8", logs.created[0].Confidence)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func TestQueryEngine_Query_NoChunksYieldsNilConfidence(t *testing.T) {
	searcher := &mockChunkSearcher{results: nil}
	chat := &mockChatProvider{name: "openai", result: &provider.ChatResult{Text: "I don't have enough information."}}
	logs := &mockQueryLogStore{}

	e := newTestQueryEngine(testQueryBot(), searcher, chat, logs)

	out, err := e.Query(context.Background(), QueryInput{BotID: "bot-1", QueryText: "Unanswerable question"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if out.Confidence != nil {
		t.Errorf("expected nil confidence with zero chunks, got %v", *out.Confidence)
	}
	if len(out.Citations) != 0 {
		t.Errorf("expected no citations, got %d", len(out.Citations))
	}
}

func TestQueryEngine_Query_PreservesSuppliedSessionID(t *testing.T) {
	searcher := &mockChunkSearcher{}
	chat := &mockChatProvider{name: "openai", result: &provider.ChatResult{Text: "ok"}}
	logs := &mockQueryLogStore{}

	e := newTestQueryEngine(testQueryBot(), searcher, chat, logs)

	out, err := e.Query(context.Background(), QueryInput{BotID: "bot-1", QueryText: "hi", SessionID: "session-abc"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if out.SessionID != "session-abc" {
		t.Errorf("session id = %q, want session-abc", out.SessionID)
	}
}

func TestQueryEngine_Query_IncludeMetadataJoinsSource(t *testing.T) {
	urlStr := "https://example.com/doc"
	searcher := &mockChunkSearcher{
		results: []repository.SearchResult{{ChunkID: "c1", Score: 0.5}},
		source:  &model.Source{SourceType: model.SourceTypeHTML, OriginalURL: &urlStr},
	}
	chat := &mockChatProvider{name: "openai", result: &provider.ChatResult{Text: "ok"}}
	logs := &mockQueryLogStore{}

	e := newTestQueryEngine(testQueryBot(), searcher, chat, logs)

	out, err := e.Query(context.Background(), QueryInput{BotID: "bot-1", QueryText: "hi", IncludeMetadata: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(out.Citations) != 1 || out.Citations[0].OriginalURL == nil || *out.Citations[0].OriginalURL != urlStr {
		t.Fatalf("expected citation joined with source metadata, got %+v", out.Citations)
	}
}

func TestQueryEngine_Query_ChatProviderUnavailable(t *testing.T) {
	searcher := &mockChunkSearcher{}
	chat := &mockChatProvider{name: "openai", err: context.DeadlineExceeded}
	logs := &mockQueryLogStore{}

	e := newTestQueryEngine(testQueryBot(), searcher, chat, logs)

	if _, err := e.Query(context.Background(), QueryInput{BotID: "bot-1", QueryText: "hi"}); err == nil {
		t.Fatal("expected error when chat provider fails")
	}
	if len(logs.created) != 0 {
		t.Error("expected no query log persisted on generation failure")
	}
}
