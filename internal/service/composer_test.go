package service

import (
	"strings"
	"testing"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/provider"
	"github.com/singlebitxyz/gulp/internal/repository"
)

func newTestComposer(modelMax, safetyMargin int) *PromptComposer {
	return NewPromptComposer(ComposerConfig{ModelMaxTokens: modelMax, SafetyMargin: safetyMargin}, NewTokenizer())
}

func TestPromptComposer_Compose_Basic(t *testing.T) {
	c := newTestComposer(10000, 100)
	chunks := []repository.SearchResult{
		{ChunkID: "c1", Excerpt: "The product supports single sign-on via SAML and OIDC."},
		{ChunkID: "c2", Excerpt: "Rate limits default to sixty requests per minute per bot."},
	}
	history := []provider.ChatMessage{
		{Role: "user", Content: "What authentication methods are supported?"},
		{Role: "assistant", Content: "SAML and OIDC are both supported."},
	}

	out, err := c.Compose("You are a helpful support assistant.", chunks, history, "Does it support SSO?", "gpt-test", 500)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if len(out.Messages) == 0 {
		t.Fatal("expected non-empty message list")
	}
	last := out.Messages[len(out.Messages)-1]
	if last.Content != "Does it support SSO?" {
		t.Errorf("last message = %q, want the query verbatim", last.Content)
	}
	if !strings.Contains(out.Messages[0].Content, "[C1]") {
		t.Errorf("expected context block first, got %q", out.Messages[0].Content)
	}
	if len(out.Used) != 2 {
		t.Errorf("expected both chunks to survive, got %d", len(out.Used))
	}
}

func TestPromptComposer_Compose_DropsLowestScoringChunksFirst(t *testing.T) {
	c := newTestComposer(200, 10)
	chunks := []repository.SearchResult{
		{ChunkID: "c1", Excerpt: strings.Repeat("high score chunk content ", 10)},
		{ChunkID: "c2", Excerpt: strings.Repeat("lowest score chunk content ", 10)},
	}

	out, err := c.Compose("system", chunks, nil, "query", "gpt-test", 10)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(out.Used) != 1 || out.Used[0].ChunkID != "c1" {
		t.Fatalf("expected only the best-scoring chunk c1 to survive, got %v", out.Used)
	}
}

func TestPromptComposer_Compose_DropsOldestHistoryFirst(t *testing.T) {
	c := newTestComposer(84, 10)
	history := []provider.ChatMessage{
		{Role: "user", Content: strings.Repeat("oldest turn ", 10)},
		{Role: "assistant", Content: strings.Repeat("middle turn ", 10)},
		{Role: "user", Content: strings.Repeat("newest turn ", 10)},
	}

	out, err := c.Compose("system", nil, history, "query", "gpt-test", 10)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	for _, m := range out.Messages[:len(out.Messages)-1] {
		if strings.Contains(m.Content, "oldest turn") {
			t.Error("expected the oldest history turn to have been dropped first")
		}
	}
}

func TestPromptComposer_Compose_QueryAlwaysLast(t *testing.T) {
	c := newTestComposer(10000, 100)
	chunks := []repository.SearchResult{{ChunkID: "c1", Excerpt: "some context"}}
	history := []provider.ChatMessage{{Role: "user", Content: "earlier turn"}}

	out, err := c.Compose("system", chunks, history, "final query", "gpt-test", 10)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	last := out.Messages[len(out.Messages)-1]
	if last.Content != "final query" {
		t.Errorf("last message = %q, want final query", last.Content)
	}
}

func TestPromptComposer_Compose_EmptyChunksStillSucceeds(t *testing.T) {
	c := newTestComposer(10000, 100)

	out, err := c.Compose("system", nil, nil, "query", "gpt-test", 10)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(out.Messages) != 1 || out.Messages[0].Content != "query" {
		t.Errorf("expected only the query message when there is no context, got %v", out.Messages)
	}
}

func TestPromptComposer_Compose_ContextOverflow(t *testing.T) {
	c := newTestComposer(50, 10)
	chunks := []repository.SearchResult{
		{ChunkID: "c1", Excerpt: strings.Repeat("this chunk is far too large to ever fit the tiny budget ", 20)},
	}

	_, err := c.Compose("system", chunks, nil, "query", "gpt-test", 10)
	if apperr.KindOf(err) != apperr.ContextOverflow {
		t.Fatalf("expected ContextOverflow, got %v", err)
	}
}

func TestPromptComposer_Compose_ZeroBudgetOverflow(t *testing.T) {
	c := newTestComposer(100, 10)

	_, err := c.Compose("system", nil, nil, "query", "gpt-test", 200)
	if apperr.KindOf(err) != apperr.ContextOverflow {
		t.Fatalf("expected ContextOverflow when bot max_tokens exceeds the model window, got %v", err)
	}
}
