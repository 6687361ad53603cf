package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/singlebitxyz/gulp/internal/cache"
	"github.com/singlebitxyz/gulp/internal/config"
	"github.com/singlebitxyz/gulp/internal/handler"
	"github.com/singlebitxyz/gulp/internal/middleware"
	"github.com/singlebitxyz/gulp/internal/objectstore"
	"github.com/singlebitxyz/gulp/internal/provider"
	"github.com/singlebitxyz/gulp/internal/repository"
	"github.com/singlebitxyz/gulp/internal/router"
	"github.com/singlebitxyz/gulp/internal/service"
)

const Version = "0.1.0"

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("main: load config: %w", err)
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("main: connect database: %w", err)
	}
	defer pool.Close()

	objects, err := objectstore.NewFilesystemStore(cfg.ObjectStoreBaseDir)
	if err != nil {
		return fmt.Errorf("main: init object store: %w", err)
	}

	var embCache *cache.EmbeddingCache
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("main: parse REDIS_URL: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		embCache = cache.NewEmbeddingCache(redisClient, time.Duration(cfg.EmbeddingCacheTTLSeconds)*time.Second)
	}

	openaiEmbed := provider.NewOpenAIEmbedding(cfg.OpenAIAPIKey, cfg.EmbeddingDimension)
	geminiEmbed, err := provider.NewGeminiEmbedding(ctx, cfg.GeminiAPIKey, cfg.EmbeddingDimension)
	if err != nil {
		return fmt.Errorf("main: init gemini embedding provider: %w", err)
	}
	openaiChat := provider.NewOpenAIChat(cfg.OpenAIAPIKey)
	geminiChat, err := provider.NewGeminiChat(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("main: init gemini chat provider: %w", err)
	}

	botRepo := repository.NewBotRepo(pool)
	sourceRepo := repository.NewSourceRepo(pool)
	chunkRepo := repository.NewChunkRepo(pool)
	widgetTokenRepo := repository.NewWidgetTokenRepo(pool)
	queryLogRepo := repository.NewQueryLogRepo(pool)
	rateCounterRepo := repository.NewRateCounterRepo(pool)

	tokenizer := service.NewTokenizer()
	chunker := service.NewChunker(service.ChunkerConfig{
		TargetTokens:  cfg.ChunkTargetTokens,
		MinTokens:     cfg.ChunkMinTokens,
		MaxTokens:     cfg.ChunkMaxTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
	}, tokenizer)
	composer := service.NewPromptComposer(service.ComposerConfig{
		ModelMaxTokens: cfg.PromptModelMaxTokens,
		SafetyMargin:   cfg.PromptSafetyMargin,
	}, tokenizer)
	embedder := service.NewEmbeddingOrchestrator(openaiEmbed, cfg.OpenAIEmbedModel, geminiEmbed, cfg.GeminiEmbedModel, embCache, cfg.EmbeddingBatchSize)
	parser := service.NewParserService(objects)
	crawler := service.NewCrawlerService(cfg.CrawlerMinVisibleChars, time.Duration(cfg.CrawlerTimeoutSeconds)*time.Second)

	ingestion := service.NewIngestionCoordinator(sourceRepo, botRepo, chunkRepo, objects, parser, crawler, chunker, embedder)
	queryEngine := service.NewQueryEngine(botRepo, embedder, chunkRepo, composer, openaiChat, cfg.OpenAIChatModel, geminiChat, cfg.GeminiChatModel, queryLogRepo)
	widgetTokens := service.NewWidgetTokenService(widgetTokenRepo)
	rateLimiter := service.NewRateLimiterService(rateCounterRepo)
	access := service.NewAccessService(botRepo)
	auth := service.NewAuthService([]byte(cfg.JWTSigningKey), cfg.JWTAlgorithm)

	jobQueue, err := newJobQueue(ctx, cfg, ingestion)
	if err != nil {
		return fmt.Errorf("main: init job queue: %w", err)
	}

	metricsReg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(metricsReg)

	deps := &router.Dependencies{
		DB:                 pool,
		AuthService:        auth,
		FrontendURL:        cfg.FrontendURL,
		Version:            Version,
		Metrics:            metrics,
		MetricsReg:         metricsReg,
		InternalAuthSecret: cfg.JWTSigningKey,

		BotDeps: handler.BotDeps{
			Bots:             botRepo,
			Access:           access,
			Sources:          sourceRepo,
			Objects:          objects,
			DefaultTopK:      cfg.DefaultTopK,
			DefaultMinScore:  cfg.DefaultMinScore,
			DefaultRateLimit: cfg.DefaultRateLimitPerMinute,
		},
		SourceDeps: handler.SourceDeps{
			Access:         access,
			Sources:        sourceRepo,
			Objects:        objects,
			Queue:          jobQueue,
			MaxUploadBytes: cfg.MaxUploadBytes,
		},
		WidgetTokenDeps: handler.WidgetTokenDeps{
			Access: access,
			Tokens: widgetTokenRepo,
			Issuer: widgetTokens,
		},
		QueryDeps: handler.QueryDeps{
			Access:    access,
			Bots:      botRepo,
			Engine:    queryEngine,
			RateLimit: rateLimiter,
		},

		WidgetValidator: widgetTokens,
	}

	r := router.New(deps)

	srv := &http.Server{
		Addr:         ":" + portString(cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gulp starting", "version", Version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("main: server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("main: graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// newJobQueue constructs the Pub/Sub transport when PUBSUB_PROJECT_ID is
// configured, otherwise the in-process worker pool.
func newJobQueue(ctx context.Context, cfg *config.Config, processor service.SourceProcessor) (service.JobQueue, error) {
	if cfg.PubSubProjectID == "" {
		return service.NewLocalJobQueue(ctx, processor, cfg.IngestWorkerConcurrency, 256), nil
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSubProjectID)
	if err != nil {
		return nil, fmt.Errorf("newJobQueue: pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSubIngestTopic)

	sub := client.Subscription(cfg.PubSubIngestSubscription)
	sub.ReceiveSettings.NumGoroutines = cfg.IngestWorkerConcurrency
	go func() {
		if err := service.RunPubSubConsumer(ctx, sub, processor); err != nil && ctx.Err() == nil {
			slog.Error("pubsub consumer stopped", "error", err)
		}
	}()

	return service.NewPubSubJobQueue(topic), nil
}

func portString(port int) string {
	return fmt.Sprintf("%d", port)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
