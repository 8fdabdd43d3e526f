package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

// GatewayConfig configures the card/mobile-money payment gateway client.
type GatewayConfig struct {
	SecretKey   string `mapstructure:"secret_key"`
	WebhookHash string `mapstructure:"webhook_hash"`
	CallbackURL string `mapstructure:"callback_url"`
	Sandbox     bool   `mapstructure:"sandbox"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type ChatConfig struct {
	TypingTimeout time.Duration `mapstructure:"typing_timeout"`
	HistoryPage   int           `mapstructure:"history_page"`
	UploadDir     string        `mapstructure:"upload_dir"`
}

type PaymentConfig struct {
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	SuccessCloseDelay time.Duration `mapstructure:"success_close_delay"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	CollectorURL string `mapstructure:"collector_url"`
	Enabled      bool   `mapstructure:"enabled"`
}

func Load(configName string) (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pixbay/")

	v.SetEnvPrefix("PIXBAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "pixbay-backend")

	v.SetDefault("gateway.sandbox", true)

	v.SetDefault("jwt.secret", "dev-secret-change-in-production")

	v.SetDefault("chat.typing_timeout", 5*time.Second)
	v.SetDefault("chat.history_page", 50)
	v.SetDefault("chat.upload_dir", "./uploads")

	v.SetDefault("payment.session_ttl", 15*time.Minute)
	v.SetDefault("payment.success_close_delay", 2*time.Second)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "pixbay-backend")
}
