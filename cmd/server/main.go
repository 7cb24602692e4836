package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/humanmixer/api/internal/config"
	"github.com/humanmixer/api/internal/handler"
	"github.com/humanmixer/api/internal/middleware"
	"github.com/humanmixer/api/internal/progress"
	"github.com/humanmixer/api/internal/separation"
	"github.com/humanmixer/api/internal/service"
	"github.com/humanmixer/api/internal/stems"
	"github.com/humanmixer/api/internal/worker"
	ws "github.com/humanmixer/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize storage
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}
	progressStore, err := progress.Open(filepath.Join(cfg.Storage.DataDir, "progress.db"))
	if err != nil {
		log.Fatalf("Failed to open progress store: %v", err)
	}
	defer progressStore.Close()

	stemRepo, err := stems.New(filepath.Join(cfg.Storage.DataDir, "sessions"))
	if err != nil {
		log.Fatalf("Failed to create stem repository: %v", err)
	}

	// Initialize separator: real microservice if configured, stub otherwise
	var separator separation.Separator
	if cfg.Separation.ServiceURL != "" {
		separator = separation.NewClient(cfg.Separation.ServiceURL)
	} else {
		log.Println("Warning: no separation service configured, using stub separator")
		separator = separation.NewStub()
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize services
	sessionService := service.NewSessionService(progressStore, stemRepo, asynqClient)
	mixService := service.NewMixService(progressStore, stemRepo)

	// Initialize handlers
	separationHandler := handler.NewSeparationHandler(sessionService)
	mixHandler := handler.NewMixHandler(mixService, validate)
	sessionHandler := handler.NewSessionHandler(sessionService)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB uploads
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":      redisClient.Ping(c.Context()).Err() == nil,
				"separation": cfg.Separation.ServiceURL != "",
			},
		})
	})

	// Stems and mix outputs are served statically, one directory per session
	app.Static("/files", stemRepo.Root())

	// API routes
	api := app.Group("/api")

	sep := api.Group("/separation")
	sep.Post("/start", rateLimiter.SeparationLimit(cfg.RateLimit.SeparationsPerHour), separationHandler.Start)
	sep.Get("/progress/:sessionId", separationHandler.Progress)
	sep.Post("/cancel/:sessionId", separationHandler.Cancel)

	api.Post("/mix", rateLimiter.MixLimit(cfg.RateLimit.MixesPerMin), mixHandler.Mix)

	api.Delete("/sessions/:sessionId", sessionHandler.Delete)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/sessions/:sessionId", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionId")
		hub.HandleConnection(c, sessionID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, progressStore, stemRepo, separator, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, progressStore *progress.Store, stemRepo *stems.Repository, separator separation.Separator, hub *ws.Hub) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One model instance per worker slot; separation is CPU-bound.
			Concurrency: cfg.Separation.Workers,
			Queues: map[string]int{
				"separation": 1,
			},
		},
	)

	separationWorker := worker.NewSeparationWorker(progressStore, stemRepo, separator, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(separation.TaskTypeSeparation, separationWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
