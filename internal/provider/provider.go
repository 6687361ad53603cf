// Package provider implements C5 (embedding providers) and C9 (LLM
// providers): uniform interfaces over the OpenAI and Gemini APIs, selected
// by bot/process configuration via a string key rather than a type switch
// at every call site.
package provider

import "context"

// EmbeddingProvider embeds a batch of texts into fixed-dimension vectors.
type EmbeddingProvider interface {
	Name() string
	EmbedTexts(ctx context.Context, texts []string, model string) ([][]float32, error)
}

// ChatMessage is one turn in a chat completion request.
type ChatMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChatResult is the normalized output of a chat completion call. Usage
// counts are those the provider reports, or zero when it reports none; the
// query engine then fills in estimates.
type ChatResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatProvider generates a completion from a system prompt and message history.
type ChatProvider interface {
	Name() string
	Generate(ctx context.Context, system string, messages []ChatMessage, model string, temperature float64, maxTokens int) (*ChatResult, error)
}
