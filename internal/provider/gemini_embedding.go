package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

// GeminiEmbedding implements EmbeddingProvider via the Gemini API.
type GeminiEmbedding struct {
	client     *genai.Client
	dimensions int
}

// NewGeminiEmbedding creates a GeminiEmbedding client.
func NewGeminiEmbedding(ctx context.Context, apiKey string, dimensions int) (*GeminiEmbedding, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("provider.NewGeminiEmbedding: %w", err)
	}
	return &GeminiEmbedding{client: client, dimensions: dimensions}, nil
}

func (p *GeminiEmbedding) Name() string { return "gemini" }

// EmbedTexts returns one vector per text, in input order.
func (p *GeminiEmbedding) EmbedTexts(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("provider.GeminiEmbedding.EmbedTexts: no texts provided")
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	outputDim := int32(p.dimensions)
	resp, err := withRetry(ctx, "gemini.embed", func() (*genai.EmbedContentResponse, error) {
		return p.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &outputDim,
		})
	})
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, apperr.New(apperr.ProviderRejected, fmt.Sprintf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts)))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if len(e.Values) != p.dimensions {
			return nil, apperr.New(apperr.ProviderRejected, fmt.Sprintf("gemini embedding has %d dimensions, want %d", len(e.Values), p.dimensions))
		}
		vectors[i] = e.Values
	}

	return vectors, nil
}

// classifyGeminiError maps a Gemini SDK error onto the C5/C9 error taxonomy.
func classifyGeminiError(err error) error {
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
