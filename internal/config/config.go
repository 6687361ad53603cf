// Package config loads process-wide configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
// It is immutable after Load() returns.
type Config struct {
	Port             int
	Environment      string
	DatabaseURL      string
	DatabaseMaxConns int
	FrontendURL      string

	RedisURL string

	PubSubProjectID         string
	PubSubIngestTopic       string
	PubSubIngestSubscription string
	IngestWorkerConcurrency int

	JWTSigningKey string
	JWTAlgorithm  string

	OpenAIAPIKey       string
	OpenAIEmbedModel   string
	OpenAIChatModel    string
	GeminiAPIKey       string
	GeminiEmbedModel   string
	GeminiChatModel    string
	PreferredProvider  string

	EmbeddingDimension int
	EmbeddingBatchSize int
	EmbeddingCacheTTLSeconds int

	DefaultTopK     int
	DefaultMinScore float64

	DefaultRateLimitPerMinute int

	ChunkTargetTokens  int
	ChunkMinTokens     int
	ChunkMaxTokens     int
	ChunkOverlapTokens int

	CrawlerMinVisibleChars int
	CrawlerTimeoutSeconds  int

	PromptModelMaxTokens int
	PromptSafetyMargin   int
	PromptHistoryTurns   int

	ObjectStoreBaseDir string

	MaxUploadBytes int64
}

// Load reads configuration from environment variables.
// Required variables (DATABASE_URL) cause an error if missing.
// Optional variables use sensible defaults.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	cfg := &Config{
		Port:             envInt("PORT", 8080),
		Environment:      envStr("ENVIRONMENT", "development"),
		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),
		FrontendURL:      envStr("FRONTEND_URL", "http://localhost:3000"),

		RedisURL: envStr("REDIS_URL", ""),

		PubSubProjectID:          envStr("PUBSUB_PROJECT_ID", ""),
		PubSubIngestTopic:        envStr("PUBSUB_INGEST_TOPIC", "gulp-ingest-jobs"),
		PubSubIngestSubscription: envStr("PUBSUB_INGEST_SUBSCRIPTION", "gulp-ingest-jobs-sub"),
		IngestWorkerConcurrency:  envInt("INGEST_WORKER_CONCURRENCY", 4),

		JWTSigningKey: envStr("JWT_SIGNING_KEY", ""),
		JWTAlgorithm:  envStr("JWT_ALGORITHM", "HS256"),

		OpenAIAPIKey:      envStr("OPENAI_API_KEY", ""),
		OpenAIEmbedModel:  envStr("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		OpenAIChatModel:   envStr("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:      envStr("GEMINI_API_KEY", ""),
		GeminiEmbedModel:  envStr("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		GeminiChatModel:   envStr("GEMINI_CHAT_MODEL", "gemini-2.0-flash"),
		PreferredProvider: envStr("PREFERRED_PROVIDER", "openai"),

		EmbeddingDimension:       envInt("EMBEDDING_DIMENSION", 1536),
		EmbeddingBatchSize:       envInt("EMBEDDING_BATCH_SIZE", 64),
		EmbeddingCacheTTLSeconds: envInt("EMBEDDING_CACHE_TTL_SECONDS", 900),

		DefaultTopK:     envInt("DEFAULT_TOP_K", 5),
		DefaultMinScore: envFloat("DEFAULT_MIN_SCORE", 0.25),

		DefaultRateLimitPerMinute: envInt("DEFAULT_RATE_LIMIT_PER_MINUTE", 60),

		ChunkTargetTokens:  envInt("CHUNK_TARGET_TOKENS", 800),
		ChunkMinTokens:     envInt("CHUNK_MIN_TOKENS", 100),
		ChunkMaxTokens:     envInt("CHUNK_MAX_TOKENS", 1200),
		ChunkOverlapTokens: envInt("CHUNK_OVERLAP_TOKENS", 100),

		CrawlerMinVisibleChars: envInt("CRAWLER_MIN_VISIBLE_CHARS", 200),
		CrawlerTimeoutSeconds:  envInt("CRAWLER_TIMEOUT_SECONDS", 20),

		PromptModelMaxTokens: envInt("PROMPT_MODEL_MAX_TOKENS", 128000),
		PromptSafetyMargin:   envInt("PROMPT_SAFETY_MARGIN", 500),
		PromptHistoryTurns:   envInt("PROMPT_HISTORY_TURNS", 5),

		ObjectStoreBaseDir: envStr("OBJECT_STORE_BASE_DIR", "./data/objects"),

		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 50*1024*1024)),
	}

	if cfg.Environment != "development" && cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("config.Load: JWT_SIGNING_KEY is required in %s environment", cfg.Environment)
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
