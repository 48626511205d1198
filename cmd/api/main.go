package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/analysis"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/api/handlers"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/cache/redis"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/embedding"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/extract"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/kg/neo4j"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/metrics"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/middleware/ratelimit"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/middleware/security"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/middleware/validation"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/retrieval"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/storage/sqlite"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/vector/milvus"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/config"
	appLogger "github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
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

	appLogger.Info("Starting GraphRAG account intelligence service")

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

	neo4jClient, err := neo4j.NewClient(
		cfg.Neo4j.URI,
		cfg.Neo4j.Username,
		cfg.Neo4j.Password,
		cfg.Neo4j.Database,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	err = neo4jClient.InitSchema(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to initialize graph schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Address,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
		cfg.Milvus.NList,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.EnsureCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	redisClient, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	embeddingClient := embedding.NewClient(
		cfg.OpenAI,
		redisClient,
		time.Duration(cfg.Redis.EmbeddingTTLSec)*time.Second,
	)

	retrievalEngine := retrieval.NewEngine(
		embeddingClient,
		milvusClient,
		neo4jClient,
		neo4jClient,
		cfg.Retrieval,
	)

	analysisEngine := analysis.NewEngine(
		extract.NewExtractor(),
		retrievalEngine,
		neo4jClient,
		milvusClient,
		embeddingClient,
		redisClient,
		sqliteClient,
		cfg.Retrieval,
		time.Duration(cfg.Redis.QueryTTLSec)*time.Second,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerWindow: cfg.Server.RateLimitPerMinute,
		Window:            time.Minute,
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Account-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: splitOrigins(cfg.Server.AllowedOrigins),
		IsDevelopment:  cfg.Server.Development,
	}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxQueryLength: cfg.Server.MaxQueryLength,
	}))

	accountHandler := handlers.NewAccountHandler(analysisEngine)
	queryHandler := handlers.NewQueryHandler(analysisEngine, sqliteClient)
	healthHandler := handlers.NewHealthHandler(neo4jClient, milvusClient, redisClient, sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(analysisEngine)

	api := app.Group("/api/v1")

	api.Post("/extract", accountHandler.ExtractEntities)
	api.Post("/graph/build", accountHandler.BuildGraph)
	api.Post("/embeddings", accountHandler.StoreEmbeddings)
	api.Post("/query", queryHandler.HandleQuery)
	api.Post("/analyze", accountHandler.Analyze)

	api.Get("/analyses", queryHandler.GetAnalyses)
	api.Get("/queries", queryHandler.GetQueries)
	api.Get("/insights", queryHandler.GetInsights)

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/analyze", websocket.New(wsHandler.HandleConnection))

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

// splitOrigins turns the comma-separated CORS origin list into the slice
// the security headers need.
func splitOrigins(origins string) []string {
	if origins == "" {
		return nil
	}

	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
