package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

// mockEmbeddingProvider implements provider.EmbeddingProvider for testing.
type mockEmbeddingProvider struct {
	name  string
	err   error
	calls int
	dim   int
}

func (m *mockEmbeddingProvider) Name() string { return m.name }

func (m *mockEmbeddingProvider) EmbedTexts(ctx context.Context, texts []string, model string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	dim := m.dim
	if dim == 0 {
		dim = 4
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, dim)
		vec[0] = float32(i + 1)
		result[i] = vec
	}
	return result, nil
}

func newTestOrchestrator(openai, gemini *mockEmbeddingProvider, batchSize int) *EmbeddingOrchestrator {
	return NewEmbeddingOrchestrator(openai, "openai-model", gemini, "gemini-model", nil, batchSize)
}

func TestEmbeddingOrchestrator_Success(t *testing.T) {
	openai := &mockEmbeddingProvider{name: "openai"}
	gemini := &mockEmbeddingProvider{name: "gemini"}
	o := newTestOrchestrator(openai, gemini, 64)

	vectors, err := o.EmbedTexts(context.Background(), []string{"hello", "world"}, "openai")
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if openai.calls != 1 || gemini.calls != 0 {
		t.Errorf("openai.calls=%d gemini.calls=%d, want 1/0", openai.calls, gemini.calls)
	}
}

func TestEmbeddingOrchestrator_Batching(t *testing.T) {
	openai := &mockEmbeddingProvider{name: "openai"}
	gemini := &mockEmbeddingProvider{name: "gemini"}
	o := newTestOrchestrator(openai, gemini, 64)

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	vectors, err := o.EmbedTexts(context.Background(), texts, "openai")
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if len(vectors) != 150 {
		t.Errorf("expected 150 vectors, got %d", len(vectors))
	}
	// 150 texts / batch size 64 -> 3 batches (64, 64, 22)
	if openai.calls != 3 {
		t.Errorf("expected 3 batch calls, got %d", openai.calls)
	}
}

func TestEmbeddingOrchestrator_FailoverOnProviderUnavailable(t *testing.T) {
	openai := &mockEmbeddingProvider{name: "openai", err: apperr.New(apperr.ProviderUnavailable, "timeout")}
	gemini := &mockEmbeddingProvider{name: "gemini"}
	o := newTestOrchestrator(openai, gemini, 64)

	vectors, err := o.EmbedTexts(context.Background(), []string{"hello"}, "openai")
	if err != nil {
		t.Fatalf("expected failover to succeed, got error: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if openai.calls != 1 || gemini.calls != 1 {
		t.Errorf("openai.calls=%d gemini.calls=%d, want 1/1", openai.calls, gemini.calls)
	}
}

func TestEmbeddingOrchestrator_FailoverOnProviderRejected(t *testing.T) {
	openai := &mockEmbeddingProvider{name: "openai", err: apperr.New(apperr.ProviderRejected, "invalid api key")}
	gemini := &mockEmbeddingProvider{name: "gemini"}
	o := newTestOrchestrator(openai, gemini, 64)

	_, err := o.EmbedTexts(context.Background(), []string{"hello"}, "openai")
	if err != nil {
		t.Fatalf("expected failover to succeed, got error: %v", err)
	}
	if gemini.calls != 1 {
		t.Errorf("expected alternate provider to be called once, got %d", gemini.calls)
	}
}

func TestEmbeddingOrchestrator_NoFailoverOnOtherErrorKinds(t *testing.T) {
	openai := &mockEmbeddingProvider{name: "openai", err: fmt.Errorf("unexpected local error")}
	gemini := &mockEmbeddingProvider{name: "gemini"}
	o := newTestOrchestrator(openai, gemini, 64)

	_, err := o.EmbedTexts(context.Background(), []string{"hello"}, "openai")
	if err == nil {
		t.Fatal("expected error")
	}
	if gemini.calls != 0 {
		t.Errorf("expected no failover for a non-ProviderUnavailable/ProviderRejected error, got %d calls", gemini.calls)
	}
}

func TestEmbeddingOrchestrator_BothProvidersFail(t *testing.T) {
	openai := &mockEmbeddingProvider{name: "openai", err: apperr.New(apperr.ProviderUnavailable, "down")}
	gemini := &mockEmbeddingProvider{name: "gemini", err: apperr.New(apperr.ProviderUnavailable, "also down")}
	o := newTestOrchestrator(openai, gemini, 64)

	_, err := o.EmbedTexts(context.Background(), []string{"hello", "world"}, "openai")
	if err == nil {
		t.Fatal("expected error when both providers fail")
	}
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if ae.Kind != apperr.EmbeddingFailed {
		t.Errorf("kind = %s, want EmbeddingFailed", ae.Kind)
	}
	if ae.BatchIndex != 0 {
		t.Errorf("batch index = %d, want 0", ae.BatchIndex)
	}
}

func TestEmbeddingOrchestrator_EmptyInput(t *testing.T) {
	openai := &mockEmbeddingProvider{name: "openai"}
	gemini := &mockEmbeddingProvider{name: "gemini"}
	o := newTestOrchestrator(openai, gemini, 64)

	_, err := o.EmbedTexts(context.Background(), []string{}, "openai")
	if err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestEmbeddingOrchestrator_UnknownProvider(t *testing.T) {
	openai := &mockEmbeddingProvider{name: "openai"}
	gemini := &mockEmbeddingProvider{name: "gemini"}
	o := newTestOrchestrator(openai, gemini, 64)

	_, err := o.EmbedTexts(context.Background(), []string{"hello"}, "anthropic")
	if err == nil {
		t.Fatal("expected error for unknown preferred provider")
	}
}

func TestEmbeddingOrchestrator_NilCacheAlwaysCallsProvider(t *testing.T) {
	openai := &mockEmbeddingProvider{name: "openai"}
	gemini := &mockEmbeddingProvider{name: "gemini"}
	o := newTestOrchestrator(openai, gemini, 64)

	if _, err := o.EmbedTexts(context.Background(), []string{"hello"}, "openai"); err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if _, err := o.EmbedTexts(context.Background(), []string{"hello"}, "openai"); err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if openai.calls != 2 {
		t.Errorf("expected a provider call on every request with a nil cache, got %d calls", openai.calls)
	}
}
