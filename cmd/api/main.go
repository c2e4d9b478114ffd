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

	"github.com/mrfila/helpdesk/internal/api/handlers"
	"github.com/mrfila/helpdesk/internal/cache/redis"
	"github.com/mrfila/helpdesk/internal/category"
	"github.com/mrfila/helpdesk/internal/chat"
	"github.com/mrfila/helpdesk/internal/keyword"
	"github.com/mrfila/helpdesk/internal/knowledge"
	"github.com/mrfila/helpdesk/internal/llm"
	"github.com/mrfila/helpdesk/internal/metrics"
	"github.com/mrfila/helpdesk/internal/middleware/ratelimit"
	"github.com/mrfila/helpdesk/internal/middleware/security"
	"github.com/mrfila/helpdesk/internal/middleware/validation"
	"github.com/mrfila/helpdesk/internal/notify"
	"github.com/mrfila/helpdesk/internal/retrieval"
	"github.com/mrfila/helpdesk/internal/scoring"
	"github.com/mrfila/helpdesk/internal/storage/sqlite"
	"github.com/mrfila/helpdesk/internal/vector/milvus"
	"github.com/mrfila/helpdesk/pkg/config"
	appLogger "github.com/mrfila/helpdesk/pkg/logger"
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

	appLogger.Info("Starting Mr.FILA Help Desk API Server")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	store := knowledge.NewStore(cfg.Knowledge.QnAFile, cfg.Knowledge.ManualsDir)

	extractor := keyword.NewExtractor()
	if cfg.Scoring.StopwordsPath != "" {
		extractor, err = keyword.NewExtractorFromFile(cfg.Scoring.StopwordsPath)
		if err != nil {
			appLogger.Fatal("Failed to load stopwords", zap.Error(err))
		}
	}

	phrases, err := scoring.LoadPhrases(cfg.Scoring.PhrasesPath)
	if err != nil {
		appLogger.Fatal("Failed to load scoring phrases", zap.Error(err))
	}

	router := category.NewRouter()
	if cfg.Scoring.CategoriesPath != "" {
		router, err = category.NewRouterFromFile(cfg.Scoring.CategoriesPath)
		if err != nil {
			appLogger.Fatal("Failed to load categories", zap.Error(err))
		}
	}

	var vectorDB *milvus.Client
	if cfg.Milvus.Endpoint != "" {
		vectorDB, err = milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Warn("Vector DB unavailable, answering without retrieval", zap.Error(err))
			vectorDB = nil
		} else {
			defer vectorDB.Close()
			if err := vectorDB.EnsureCollection(context.Background()); err != nil {
				appLogger.Fatal("Failed to prepare collection", zap.Error(err))
			}
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	retrievalService := retrieval.NewService(
		llmClient,
		vectorDB,
		store,
		cfg.Milvus.TopK,
		cfg.Knowledge.ChunkSize,
		cfg.Knowledge.ChunkOverlap,
	)

	matcher := scoring.NewMatcher(store, extractor)
	scorer := scoring.NewEngine(matcher, extractor, phrases)

	notifier := notify.NewNotifier(
		cfg.Notifier.WebhookURL,
		time.Duration(cfg.Notifier.TimeoutSec)*time.Second,
		sqliteClient,
	)

	var answerCache chat.AnswerCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, answer cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			answerCache = redisClient
		}
	}

	metrics.Init()

	chatEngine := chat.NewEngine(
		retrievalService,
		scorer,
		router,
		notifier,
		sqliteClient,
		store,
		answerCache,
		time.Duration(cfg.Redis.TTLSec)*time.Second,
		cfg.Knowledge.HistoryTurns,
	)

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
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	rateLimiter := ratelimit.New(ratelimit.Config{
		Logger: appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()
	app.Use(rateLimiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	chatHandler := handlers.NewChatHandler(chatEngine, sqliteClient)
	learnHandler := handlers.NewLearnHandler(chatEngine, sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(chatEngine)

	api := app.Group("/api/v1")

	api.Post("/chat", chatHandler.HandleChat)
	api.Get("/chat/history", chatHandler.GetHistory)
	api.Get("/chat/stats", chatHandler.GetStats)

	api.Post("/chat/:id/learn", learnHandler.LearnAnswer)
	api.Get("/chat/:id/learned", learnHandler.GetLearnedAnswers)
	api.Put("/learned/:id", learnHandler.UpdateLearnedAnswer)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

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
