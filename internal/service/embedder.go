package service

import (
	"context"
	"fmt"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/cache"
	"github.com/singlebitxyz/gulp/internal/provider"
)

// EmbeddingOrchestrator implements the C6 contract: batch inputs, try the
// preferred provider, and fail over to the alternate provider once per batch
// on a transport or rejection error. A successful batch never mixes vectors
// from two providers.
type EmbeddingOrchestrator struct {
	providers map[string]provider.EmbeddingProvider
	models    map[string]string
	cache     *cache.EmbeddingCache
	batchSize int
}

// NewEmbeddingOrchestrator wires the OpenAI and Gemini embedding providers
// together with their configured model names and the shared result cache.
func NewEmbeddingOrchestrator(openai provider.EmbeddingProvider, openaiModel string, gemini provider.EmbeddingProvider, geminiModel string, c *cache.EmbeddingCache, batchSize int) *EmbeddingOrchestrator {
	return &EmbeddingOrchestrator{
		providers: map[string]provider.EmbeddingProvider{
			openai.Name(): openai,
			gemini.Name(): gemini,
		},
		models: map[string]string{
			openai.Name(): openaiModel,
			gemini.Name(): geminiModel,
		},
		cache:     c,
		batchSize: batchSize,
	}
}

// EmbedTexts returns one vector per text, in input order, using preferred as
// the first-choice provider name ("openai" or "gemini").
func (o *EmbeddingOrchestrator) EmbedTexts(ctx context.Context, texts []string, preferred string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("service.EmbeddingOrchestrator.EmbedTexts: no texts provided")
	}
	primary, ok := o.providers[preferred]
	if !ok {
		return nil, fmt.Errorf("service.EmbeddingOrchestrator.EmbedTexts: unknown provider %q", preferred)
	}
	primaryModel := o.models[preferred]
	alternate := o.alternateOf(preferred)

	result := make([][]float32, len(texts))
	pending := make([]int, 0, len(texts))

	for i, text := range texts {
		if o.cache != nil {
			if vec, ok := o.cache.Get(ctx, cache.Key(primaryModel, text)); ok {
				result[i] = vec
				continue
			}
		}
		pending = append(pending, i)
	}

	// batch_index counts batches over the texts that actually need a
	// provider call; cache hits never occupy a batch slot.
	for start := 0; start < len(pending); start += o.batchSize {
		end := start + o.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batchIdx := pending[start:end]
		batchTexts := make([]string, len(batchIdx))
		for j, idx := range batchIdx {
			batchTexts[j] = texts[idx]
		}

		vectors, usedModel, err := o.runBatch(ctx, primary, alternate, primaryModel, batchTexts)
		if err != nil {
			return nil, apperr.EmbeddingFailedErr(start/o.batchSize, err)
		}
		for j, idx := range batchIdx {
			result[idx] = vectors[j]
			if o.cache != nil {
				o.cache.Set(ctx, cache.Key(usedModel, texts[idx]), vectors[j])
			}
		}
	}

	return result, nil
}

// runBatch tries primary, then alternate once if primary fails with a
// failover-eligible error, returning the vectors and the name of whichever
// provider's model actually produced them.
func (o *EmbeddingOrchestrator) runBatch(ctx context.Context, primary, alternate provider.EmbeddingProvider, primaryModel string, texts []string) ([][]float32, string, error) {
	vectors, err := primary.EmbedTexts(ctx, texts, primaryModel)
	if err == nil {
		return vectors, primaryModel, nil
	}
	if alternate == nil || !isFailoverEligible(err) {
		return nil, "", err
	}

	altModel := o.models[alternate.Name()]
	altVectors, altErr := alternate.EmbedTexts(ctx, texts, altModel)
	if altErr != nil {
		return nil, "", fmt.Errorf("primary failed: %w; alternate %s also failed: %v", err, alternate.Name(), altErr)
	}
	return altVectors, altModel, nil
}

func (o *EmbeddingOrchestrator) alternateOf(preferred string) provider.EmbeddingProvider {
	for name, p := range o.providers {
		if name != preferred {
			return p
		}
	}
	return nil
}

func isFailoverEligible(err error) bool {
	kind := apperr.KindOf(err)
	return kind == apperr.ProviderUnavailable || kind == apperr.ProviderRejected
}
