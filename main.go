package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/Ananth-NQI/lycapay-backend/database"
	"github.com/Ananth-NQI/lycapay-backend/internal/config"
	"github.com/Ananth-NQI/lycapay-backend/internal/handlers"
	"github.com/Ananth-NQI/lycapay-backend/internal/jobs"
	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
	"github.com/Ananth-NQI/lycapay-backend/internal/routes"
	"github.com/Ananth-NQI/lycapay-backend/internal/services"
	"github.com/Ananth-NQI/lycapay-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	log := logging.WithComponent("main")

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize storage
	var store storage.Store
	if cfg.Database.UseMemoryStore {
		log.Warn("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			log.WithError(err).Fatal("Database unavailable")
		}
		store = storage.NewDatabaseStore(db)
		log.Info("✅ Using PostgreSQL database storage")
	}

	// Webhook de-duplication
	var redisClient *redis.Client
	var dedup services.Deduplicator
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		dedup = services.NewRedisDeduplicator(redisClient, cfg.Redis.DedupTTL)
		log.WithField("addr", cfg.Redis.Addr).Info("✅ Redis de-duplication enabled")
	} else {
		dedup = services.NewMemoryDeduplicator(cfg.Redis.DedupTTL)
	}

	// Outbound WhatsApp
	var sender services.Sender
	twilioService, err := services.NewTwilioService(cfg.Twilio)
	if err != nil {
		log.WithError(err).Warn("⚠️  Twilio not initialized, replies will only be logged")
		sender = services.NewLogSender()
	} else {
		sender = twilioService
		log.Info("✅ Twilio service initialized")
	}

	// Initialize all services
	lyca := services.NewLycaClient(cfg.Lyca)
	sessions := services.NewSessionStore(store, cfg.Bot.SessionTTL)
	ledger := services.NewLedger(store)
	bot := services.NewBotService(store, lyca, sessions, ledger, cfg.Bot)

	reconcileJob := jobs.NewReconcileJob(store, lyca, ledger, cfg.Jobs.ReconcileInterval, cfg.Jobs.ReconcileAfter)
	reconcileJob.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "LycaPay WhatsApp Bot v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	whatsappHandler := handlers.NewWhatsAppHandler(bot, sender, dedup)
	healthHandler := handlers.NewHealthHandler(handlers.HealthOptions{
		Version:          version,
		Environment:      cfg.Environment,
		LycaEnv:          cfg.Lyca.Environment,
		Store:            store,
		Redis:            redisClient,
		TwilioConfigured: twilioService != nil,
	})

	routes.SetupRoutes(app, whatsappHandler, healthHandler, routes.Options{
		ValidateWebhook: !cfg.Server.DisableWebhookValidation && cfg.Environment != "development",
		AuthToken:       cfg.Twilio.AuthToken,
		PublicURL:       cfg.Server.PublicURL,
		EnableTestRoute: !cfg.IsProduction(),
	})

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("🛑 Gracefully shutting down...")
		reconcileJob.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.WithError(err).Warn("Server shutdown incomplete")
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	log.WithFields(logging.Fields{
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
		"lyca_api":    cfg.Lyca.Environment,
		"twilio":      twilioService != nil,
	}).Info("🚀 LycaPay bot starting")

	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}
