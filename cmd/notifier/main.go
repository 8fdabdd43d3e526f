package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aine1100/pixbay-backend/internal/notifier"
	"github.com/aine1100/pixbay-backend/internal/repository"
	"github.com/aine1100/pixbay-backend/pkg/config"
	"github.com/aine1100/pixbay-backend/pkg/database"
	"github.com/aine1100/pixbay-backend/pkg/events"
	"github.com/aine1100/pixbay-backend/pkg/logger"
	"github.com/aine1100/pixbay-backend/pkg/middleware"
	"github.com/aine1100/pixbay-backend/pkg/sms"
)

func main() {
	logger.Init("pixbay-notifier", getEnvOrDefault("LOG_LEVEL", "info"), os.Getenv("LOG_PRETTY") != "false")
	logger.Info().Msg("Starting Pixbay notifier")

	cfg, err := config.Load("config")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Fatal().Msg("Kafka brokers not configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	var smsClient notifier.SMSClient
	if os.Getenv("SMS_SANDBOX") == "true" || os.Getenv("AT_API_KEY") == "" {
		logger.Warn().Msg("Using mock SMS client")
		smsClient = sms.NewMockClient()
	} else {
		smsClient = sms.NewClient(&sms.Config{
			APIKey:   os.Getenv("AT_API_KEY"),
			Username: getEnvOrDefault("AT_USERNAME", "sandbox"),
			Sender:   os.Getenv("AT_SENDER"),
			Sandbox:  os.Getenv("AT_SANDBOX") == "true",
		})
	}

	subscriber := events.NewKafkaSubscriber(cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-notifier")
	defer subscriber.Close()

	consumer := notifier.NewConsumer(
		subscriber,
		repository.NewUserRepository(db),
		notifier.NewSender(smsClient),
	)
	if err := consumer.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start consumer")
	}
	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Consuming notification events")

	app := fiber.New(fiber.Config{AppName: "Pixbay Notifier"})
	app.Use(recover.New())
	app.Use(middleware.RequestID())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "service": "pixbay-notifier"})
	})

	go func() {
		if err := app.Listen(":" + getEnvOrDefault("NOTIFIER_PORT", "8081")); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Pixbay notifier")
	cancel()
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
