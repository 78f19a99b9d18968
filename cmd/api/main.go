package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/api/handlers"
	"github.com/claims-agent/backend/internal/cache/redis"
	"github.com/claims-agent/backend/internal/engine"
	"github.com/claims-agent/backend/internal/index"
	"github.com/claims-agent/backend/internal/ingestion"
	"github.com/claims-agent/backend/internal/llm"
	"github.com/claims-agent/backend/internal/metrics"
	"github.com/claims-agent/backend/internal/middleware/auth"
	"github.com/claims-agent/backend/internal/middleware/ratelimit"
	"github.com/claims-agent/backend/internal/middleware/security"
	"github.com/claims-agent/backend/internal/middleware/validation"
	"github.com/claims-agent/backend/internal/pipeline"
	"github.com/claims-agent/backend/internal/storage/sqlite"
	"github.com/claims-agent/backend/pkg/config"
	appLogger "github.com/claims-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Claims Agent API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	storeFactory, closeStore, err := buildStoreFactory(cfg)
	if err != nil {
		appLogger.Fatal("Failed to create index backend", zap.Error(err))
	}
	defer closeStore()

	chunker := ingestion.NewChunker(cfg.Corpus.ChunkMaxWords, cfg.Corpus.ChunkMinWords)
	loader := ingestion.NewLoader(cfg.Corpus.DocsDir, chunker)

	decisionEngine := engine.New(llmClient, cfg.Rules.EmergencyMinPolicyMonths)

	pipe := pipeline.New(loader, llmClient, decisionEngine, sqliteClient, redisClient, pipeline.Options{
		TopK:         cfg.Corpus.TopK,
		FastPath:     cfg.Corpus.FastPath,
		CacheTTL:     time.Duration(cfg.Redis.TTLSec) * time.Second,
		StoreFactory: storeFactory,
	})

	// Startup is fail-fast: the service never serves claims over a
	// partially built index.
	buildCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	if err := pipe.Build(buildCtx); err != nil {
		cancel()
		appLogger.Fatal("Failed to build policy index", zap.Error(err))
	}
	cancel()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	rateLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimit,
		Logger:               appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	claimHandler := handlers.NewClaimHandler(pipe)
	batchHandler := handlers.NewBatchHandler(pipe)
	healthHandler := handlers.NewHealthHandler(pipe)
	adminHandler := handlers.NewAdminHandler(pipe, sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(pipe)

	app.Get("/health", healthHandler.HandleHealth)
	app.Get("/ready", healthHandler.HandleReady)
	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1",
		auth.BearerToken(cfg.Auth.BearerToken, appLogger.GetLogger()),
		rateLimiter.Middleware(),
		validation.Middleware(validation.Config{
			Logger: appLogger.GetLogger(),
		}),
	)

	api.Post("/claims", claimHandler.HandleClaim)
	api.Post("/claims/batch", batchHandler.HandleBatch)
	api.Post("/rebuild", adminHandler.HandleRebuild)
	api.Get("/decisions", adminHandler.HandleDecisionHistory)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

// buildStoreFactory returns a factory the pipeline calls on every build.
// The memory backend is rebuilt from scratch each time; the milvus backend
// reuses one connection and recreates its collection on Build.
func buildStoreFactory(cfg *config.Config) (func() index.Store, func(), error) {
	switch cfg.Index.Backend {
	case "milvus":
		client, err := index.NewMilvus(cfg.Index.Endpoint, cfg.Index.CollectionName, cfg.LLM.EmbeddingDim)
		if err != nil {
			return nil, nil, err
		}
		return func() index.Store { return client }, func() { client.Close() }, nil
	default:
		return func() index.Store { return index.NewMemory() }, func() {}, nil
	}
}
