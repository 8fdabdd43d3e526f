package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aine1100/pixbay-backend/internal/chat"
	"github.com/aine1100/pixbay-backend/internal/handler"
	"github.com/aine1100/pixbay-backend/internal/payment"
	"github.com/aine1100/pixbay-backend/internal/repository"
	"github.com/aine1100/pixbay-backend/pkg/cache"
	"github.com/aine1100/pixbay-backend/pkg/config"
	"github.com/aine1100/pixbay-backend/pkg/database"
	"github.com/aine1100/pixbay-backend/pkg/events"
	"github.com/aine1100/pixbay-backend/pkg/gateway"
	"github.com/aine1100/pixbay-backend/pkg/logger"
	"github.com/aine1100/pixbay-backend/pkg/metrics"
	"github.com/aine1100/pixbay-backend/pkg/middleware"
	"github.com/aine1100/pixbay-backend/pkg/response"
	"github.com/aine1100/pixbay-backend/pkg/telemetry"
)

func main() {
	logger.Init("pixbay-backend", getEnvOrDefault("LOG_LEVEL", "info"), os.Getenv("LOG_PRETTY") != "false")
	logger.Info().Msg("Starting Pixbay backend")

	cfg, err := config.Load("config")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, &telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		CollectorURL: cfg.Telemetry.CollectorURL,
		Environment:  getEnvOrDefault("ENVIRONMENT", "development"),
		Enabled:      cfg.Telemetry.Enabled,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize tracing")
	} else {
		defer tp.Shutdown(ctx)
	}

	db, err := database.NewPool(ctx, &database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	logger.Info().Msg("Connected to database")

	// Presence falls back to process-local state when Redis is absent,
	// which is fine for a single instance.
	var presence chat.PresenceStore
	redisCache, err := cache.New(ctx, &cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, using in-memory presence")
		presence = chat.NewMemoryPresence()
	} else {
		defer redisCache.Close()
		presence = chat.NewRedisPresence(redisCache)
		logger.Info().Msg("Connected to Redis")
	}

	var publisher events.Publisher
	if brokers := cfg.Kafka.Brokers; len(brokers) > 0 && brokers[0] != "" {
		kafkaPublisher := events.NewKafkaPublisher(brokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info().Strs("brokers", brokers).Msg("Connected to Kafka")
	} else {
		logger.Warn().Msg("Kafka not configured, events will not be published")
	}

	var gatewayClient payment.GatewayClient
	if cfg.Gateway.Sandbox || cfg.Gateway.SecretKey == "" {
		logger.Warn().Msg("Using mock payment gateway")
		gatewayClient = gateway.NewMockClient()
	} else {
		gatewayClient = gateway.NewClient(&gateway.Config{
			SecretKey:   cfg.Gateway.SecretKey,
			WebhookHash: cfg.Gateway.WebhookHash,
			CallbackURL: cfg.Gateway.CallbackURL,
			Sandbox:     cfg.Gateway.Sandbox,
		})
	}

	bookingRepo := repository.NewBookingRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	walletRepo := repository.NewWalletRepository(db)

	hub := chat.NewHub(presence)
	go hub.Run()
	defer hub.Stop()

	chatSvc := chat.NewService(conversationRepo, publisher, hub, chat.ServiceConfig{
		TypingTimeout: cfg.Chat.TypingTimeout,
		HistoryPage:   cfg.Chat.HistoryPage,
	})

	paymentHandler := handler.NewPayment(gatewayClient, bookingRepo, walletRepo, chatSvc, publisher, handler.PaymentConfig{
		SessionTTL:        cfg.Payment.SessionTTL,
		SuccessCloseDelay: cfg.Payment.SuccessCloseDelay,
		WebhookHash:       cfg.Gateway.WebhookHash,
	})
	defer paymentHandler.Stop()

	chatHandler := handler.NewChat(hub, chatSvc, conversationRepo, handler.ChatConfig{
		JWTSecret:   cfg.JWT.Secret,
		UploadDir:   cfg.Chat.UploadDir,
		HistoryPage: cfg.Chat.HistoryPage,
	})
	bookingHandler := handler.NewBooking(bookingRepo, walletRepo, "RWF")

	app := fiber.New(fiber.Config{
		AppName:      "Pixbay Backend",
		ErrorHandler: response.ErrorHandler,
		BodyLimit:    12 << 20,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins:     []string{getEnvOrDefault("CORS_ORIGIN", "http://localhost:3000")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	app.Use(metrics.Middleware(metrics.Config{
		ServiceName: "pixbay-backend",
		SkipPaths:   []string{"/health", "/metrics"},
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "service": "pixbay-backend"})
	})
	app.Get("/metrics", metrics.Handler())
	app.Static("/uploads", cfg.Chat.UploadDir)

	app.Post("/webhooks/flutterwave", paymentHandler.Webhook)

	chatHandler.RegisterSocket(app)

	api := app.Group("/api/v1", middleware.Auth(cfg.JWT.Secret), middleware.RateLimiter(middleware.RateLimitConfig{
		Max:      120,
		Duration: time.Minute,
	}))
	paymentHandler.RegisterRoutes(api)
	chatHandler.RegisterRoutes(api)
	bookingHandler.RegisterRoutes(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := app.Listen(addr); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Pixbay backend started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Pixbay backend")
	if err := app.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
