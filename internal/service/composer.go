package service

import (
	"fmt"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/provider"
	"github.com/singlebitxyz/gulp/internal/repository"
)

// ComposerConfig holds the token-budget parameters for C10, sourced from
// process configuration: the bot's own max_tokens is subtracted from
// ModelMaxTokens at call time, so only the model window and safety margin
// are fixed here.
type ComposerConfig struct {
	ModelMaxTokens int
	SafetyMargin   int
}

// PromptComposer assembles the message list for C9 under a token budget.
type PromptComposer struct {
	cfg ComposerConfig
	tok *Tokenizer
}

// NewPromptComposer creates a PromptComposer.
func NewPromptComposer(cfg ComposerConfig, tok *Tokenizer) *PromptComposer {
	return &PromptComposer{cfg: cfg, tok: tok}
}

// Composed is the output of Compose: a ready-to-send message list plus the
// chunks that survived budget trimming, in the order they appear in context.
type Composed struct {
	Messages []provider.ChatMessage
	Used     []repository.SearchResult
}

// Compose builds the message list per the C10 contract: retrieved chunks
// as one "Context" block (lowest-score chunks dropped first to fit half the
// budget), then history (oldest dropped first to fit the remaining budget),
// then the query last. The system prompt counts against the budget but is
// not part of the list; the caller passes it to the provider. Fails with
// apperr.ContextOverflow if even the single highest-scoring chunk plus the
// query does not fit.
func (c *PromptComposer) Compose(systemPrompt string, chunks []repository.SearchResult, history []provider.ChatMessage, query, modelName string, botMaxTokens int) (*Composed, error) {
	budget := c.cfg.ModelMaxTokens - botMaxTokens - c.cfg.SafetyMargin
	if budget <= 0 {
		return nil, apperr.New(apperr.ContextOverflow, "model budget leaves no room for context")
	}

	systemTokens := c.tok.CountTokens(systemPrompt, modelName)
	queryTokens := c.tok.CountTokens(query, modelName)
	fixedTokens := systemTokens + queryTokens
	if fixedTokens >= budget {
		return nil, apperr.New(apperr.ContextOverflow, "system prompt and query alone exceed the model budget")
	}

	contextBudget := (budget - fixedTokens) / 2
	used, contextBlock, contextTokens := c.fitChunks(chunks, contextBudget, modelName)
	if len(chunks) > 0 && len(used) == 0 {
		return nil, apperr.New(apperr.ContextOverflow, "no chunk fits within the context budget")
	}

	remaining := budget - fixedTokens - contextTokens
	trimmedHistory := c.fitHistory(history, remaining, modelName)

	messages := make([]provider.ChatMessage, 0, len(trimmedHistory)+2)
	if contextBlock != "" {
		messages = append(messages, provider.ChatMessage{Role: "user", Content: contextBlock})
	}
	messages = append(messages, trimmedHistory...)
	messages = append(messages, provider.ChatMessage{Role: "user", Content: query})

	return &Composed{Messages: messages, Used: used}, nil
}

// fitChunks builds the Context block, dropping the lowest-score chunk
// repeatedly until the block's token count fits budget. chunks is assumed
// already ordered best-score-first by the caller (C8's Search contract).
func (c *PromptComposer) fitChunks(chunks []repository.SearchResult, budget int, modelName string) ([]repository.SearchResult, string, int) {
	candidates := make([]repository.SearchResult, len(chunks))
	copy(candidates, chunks)

	for len(candidates) > 0 {
		block := renderContextBlock(candidates)
		tokens := c.tok.CountTokens(block, modelName)
		if tokens <= budget {
			return candidates, block, tokens
		}
		candidates = candidates[:len(candidates)-1]
	}
	return nil, "", 0
}

// fitHistory drops oldest-first messages until the remaining turns fit
// budget.
func (c *PromptComposer) fitHistory(history []provider.ChatMessage, budget int, modelName string) []provider.ChatMessage {
	remaining := history
	for len(remaining) > 0 {
		total := 0
		for _, m := range remaining {
			total += c.tok.CountTokens(m.Content, modelName)
		}
		if total <= budget {
			return remaining
		}
		remaining = remaining[1:]
	}
	return nil
}

func renderContextBlock(chunks []repository.SearchResult) string {
	block := "Context:\n"
	for i, ch := range chunks {
		block += fmt.Sprintf("[C%d] (chunk_id=%s) %s\n", i+1, ch.ChunkID, ch.Excerpt)
	}
	return block
}
