package provider

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

// OpenAIChat implements ChatProvider via the OpenAI chat completions API.
type OpenAIChat struct {
	client openai.Client
}

// NewOpenAIChat creates an OpenAIChat client.
func NewOpenAIChat(apiKey string) *OpenAIChat {
	return &OpenAIChat{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (p *OpenAIChat) Name() string { return "openai" }

// Generate produces a single chat completion.
func (p *OpenAIChat) Generate(ctx context.Context, system string, messages []ChatMessage, model string, temperature float64, maxTokens int) (*ChatResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Temperature: param.NewOpt(temperature),
		MaxTokens:   param.NewOpt(int64(maxTokens)),
	}

	if system != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(system))
	}
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := withRetry(ctx, "openai.chat", func() (*openai.ChatCompletion, error) {
		return p.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return nil, classifyOpenAIChatError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.New(apperr.ProviderRejected, "openai returned no choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		return nil, apperr.New(apperr.ContextOverflow, "openai completion truncated at max_tokens")
	}

	return &ChatResult{
		Text:             choice.Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}, nil
}

func classifyOpenAIChatError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context_length") || strings.Contains(msg, "maximum context"):
		return apperr.Wrap(apperr.ContextOverflow, "openai context window exceeded", err)
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "quota") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return apperr.Wrap(apperr.ProviderRejected, "openai request rejected", err)
	default:
		return apperr.Wrap(apperr.ProviderUnavailable, "openai chat unavailable", err)
	}
}
