// Package cache provides the embedding result cache used by C6 to avoid
// redundant provider calls for repeated chunk/query texts.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// EmbeddingCache caches embedding vectors in Redis, keyed by a hash of the
// normalized input text and model name. Entries expire via Redis TTL rather
// than an in-process sweep.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEmbeddingCache creates an EmbeddingCache backed by client.
func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{client: client, ttl: ttl}
}

// Get returns a cached embedding vector if present and not expired.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache.EmbeddingCache.Get: redis error, treating as miss", "error", err)
		}
		return nil, false
	}
	vec, err := decodeVector(raw)
	if err != nil {
		slog.Warn("cache.EmbeddingCache.Get: corrupt entry, treating as miss", "error", err)
		return nil, false
	}
	return vec, true
}

// Set stores an embedding vector in the cache with the configured TTL.
func (c *EmbeddingCache) Set(ctx context.Context, key string, vec []float32) {
	if err := c.client.Set(ctx, redisKey(key), encodeVector(vec), c.ttl).Err(); err != nil {
		slog.Warn("cache.EmbeddingCache.Set: redis error, skipping cache write", "error", err)
	}
}

func redisKey(key string) string { return "emb:" + key }

// encodeVector packs a []float32 into a compact binary representation.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("cache: vector buffer length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

// Key returns a deterministic cache key for a (model, text) pair, normalizing
// the text by lowercasing and trimming whitespace before hashing.
func Key(model, text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	h := sha256.Sum256([]byte(model + "\x00" + normalized))
	return fmt.Sprintf("%x", h[:16])
}
