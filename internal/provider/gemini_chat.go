package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

// GeminiChat implements ChatProvider via the Gemini API.
type GeminiChat struct {
	client *genai.Client
}

// NewGeminiChat creates a GeminiChat client.
func NewGeminiChat(ctx context.Context, apiKey string) (*GeminiChat, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("provider.NewGeminiChat: %w", err)
	}
	return &GeminiChat{client: client}, nil
}

func (p *GeminiChat) Name() string { return "gemini" }

// Generate produces a single chat completion. Gemini has no separate
// "system" role for the generate-content endpoint used here, so the system
// prompt is sent as a SystemInstruction on the call config.
func (p *GeminiChat) Generate(ctx context.Context, system string, messages []ChatMessage, model string, temperature float64, maxTokens int) (*ChatResult, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if strings.ToLower(m.Role) == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("provider.GeminiChat.Generate: no messages provided")
	}

	temp := float32(temperature)
	maxOut := int32(maxTokens)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: maxOut,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := withRetry(ctx, "gemini.generate", func() (*genai.GenerateContentResponse, error) {
		return p.client.Models.GenerateContent(ctx, model, contents, cfg)
	})
	if err != nil {
		return nil, classifyGeminiChatError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, apperr.New(apperr.ProviderRejected, "gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return nil, apperr.New(apperr.ContextOverflow, "gemini completion truncated at max output tokens")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	result := &ChatResult{Text: sb.String()}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return result, nil
}

func classifyGeminiChatError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "permission") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "quota") ||
		strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return apperr.Wrap(apperr.ProviderRejected, "gemini request rejected", err)
	default:
		return apperr.Wrap(apperr.ProviderUnavailable, "gemini unavailable", err)
	}
}
