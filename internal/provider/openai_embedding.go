package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

// OpenAIEmbedding implements EmbeddingProvider via the OpenAI embeddings API.
type OpenAIEmbedding struct {
	client     openai.Client
	dimensions int
}

// NewOpenAIEmbedding creates an OpenAIEmbedding client. dimensions is the
// expected output vector length (C5's configured D); a provider returning a
// different length fails with apperr.ProviderRejected.
func NewOpenAIEmbedding(apiKey string, dimensions int) *OpenAIEmbedding {
	return &OpenAIEmbedding{
		client:     openai.NewClient(option.WithAPIKey(apiKey)),
		dimensions: dimensions,
	}
}

func (p *OpenAIEmbedding) Name() string { return "openai" }

// EmbedTexts returns one vector per text, in input order.
func (p *OpenAIEmbedding) EmbedTexts(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("provider.OpenAIEmbedding.EmbedTexts: no texts provided")
	}

	resp, err := withRetry(ctx, "openai.embeddings", func() (*openai.CreateEmbeddingResponse, error) {
		return p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model:          openai.EmbeddingModel(model),
			Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Dimensions:     openai.Int(int64(p.dimensions)),
			EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
		})
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, apperr.New(apperr.ProviderRejected, fmt.Sprintf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		if len(vec) != p.dimensions {
			return nil, apperr.New(apperr.ProviderRejected, fmt.Sprintf("openai embedding has %d dimensions, want %d", len(vec), p.dimensions))
		}
		vectors[d.Index] = vec
	}

	return vectors, nil
}

// classifyOpenAIError maps an OpenAI SDK error onto the C5 error taxonomy.
func classifyOpenAIError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "quota") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return apperr.Wrap(apperr.ProviderRejected, "openai request rejected", err)
	default:
		return apperr.Wrap(apperr.ProviderUnavailable, "openai embeddings unavailable", err)
	}
}
