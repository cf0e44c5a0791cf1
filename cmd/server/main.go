package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/cache"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/handlers"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/handlers/ws"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/middleware"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/repository"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/service"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:   "CelebrateNow Chat",
		BodyLimit: 1 * 1024 * 1024, // 1MB; media bytes go through the platform backend
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     os.Getenv("ALLOWED_ORIGINS"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// Initialize database connection
	db, err := repository.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis cache
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsedDB, err := strconv.Atoi(dbStr); err == nil {
			redisDB = parsedDB
		}
	}

	redisCache := cache.NewRedisCache(redisAddr, redisPassword, redisDB)
	if err := redisCache.Ping(); err != nil {
		log.Printf("WARNING: Redis connection failed: %v. Running without cache.", err)
		redisCache = nil
	} else {
		log.Println("Redis cache connected successfully")
	}

	messageCache := cache.NewMessageCache(redisCache)
	userCache := cache.NewUserCache(redisCache)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	groupMessageRepo := repository.NewGroupMessageRepository(db)
	pendingMessageRepo := repository.NewPendingMessageRepository(db)

	// The hub doubles as the presence directory consulted for initial
	// delivery status, so it is built before the services.
	hub := ws.NewHub(pendingMessageRepo)

	// Periodically drop stale entries from the offline push queue.
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := pendingMessageRepo.CleanupOld(7 * 24 * time.Hour); err != nil {
				log.Printf("Pending message cleanup failed: %v", err)
			}
		}
	}()

	// Initialize services
	deliveryService := service.NewDeliveryService(hub)
	messageService := service.NewMessageService(messageRepo, blockRepo, userRepo, deliveryService, messageCache)
	groupService := service.NewGroupService(groupRepo, groupMessageRepo, blockRepo, userRepo, deliveryService)

	// Initialize S3/MinIO storage (best-effort; media endpoint returns 503 if missing)
	var s3Store *storage.S3Storage
	if cfg, err := storage.LoadS3ConfigFromEnv(); err != nil {
		log.Printf("WARNING: S3 storage not configured: %v", err)
	} else if st, err := storage.NewS3Storage(cfg); err != nil {
		log.Printf("WARNING: Failed to initialize S3 storage: %v", err)
	} else {
		s3Store = st
		log.Printf("S3 storage initialized successfully (bucket=%s)", cfg.Bucket)
	}

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(hub, messageService, groupService, userRepo, userCache)
	messageHandler := handlers.NewMessageHandler(messageService, messageCache, userCache, hub)
	groupHandler := handlers.NewGroupHandler(groupService, messageCache, hub)
	mediaHandler := handlers.NewMediaHandler(s3Store)

	api := app.Group("/api", middleware.OriginAllowed())

	// Protected routes
	protected := api.Group("/", middleware.AuthRequired(), limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))
	protected.Post("/messages", messageHandler.SendMessage)
	protected.Get("/messages", messageHandler.GetChatHistory)
	protected.Get("/messages/unseen", messageHandler.GetUnseen)
	protected.Get("/inbox", messageHandler.GetInbox)
	protected.Post("/messages/read", messageHandler.MarkRead)
	protected.Post("/messages/delivered", messageHandler.MarkDelivered)
	protected.Post("/blocks", messageHandler.BlockUser)
	protected.Delete("/blocks/:user_id", messageHandler.UnblockUser)
	protected.Get("/presence/online", wsHandler.OnlineUsers)

	// Group routes
	protected.Post("/groups", groupHandler.CreateGroup)
	protected.Get("/groups", groupHandler.GetMyGroups)
	protected.Post("/groups/:id/members", groupHandler.AddMember)
	protected.Delete("/groups/:id/members/:user_id", groupHandler.RemoveMember)
	protected.Post("/groups/:id/leave", groupHandler.LeaveGroup)
	protected.Get("/groups/:id/members", groupHandler.GetMembers)
	protected.Post("/groups/:id/messages", groupHandler.SendGroupMessage)
	protected.Get("/groups/:id/messages", groupHandler.GetGroupHistory)
	protected.Post("/groups/:id/read", groupHandler.MarkGroupRead)
	protected.Post("/groups/:id/delivered", groupHandler.MarkGroupDelivered)

	// Media references
	protected.Get("/media/messages/*", mediaHandler.GetMessageMedia)

	// WebSocket route (websocket upgrade needs special handling)
	app.Use(
		"/ws",
		middleware.OriginAllowed(),
		middleware.AuthRequired(),
		func(c *fiber.Ctx) error {
			// Upgrade to WebSocket
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
	)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "CelebrateNow chat is running",
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s...", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
