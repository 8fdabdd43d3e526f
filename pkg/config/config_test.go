package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
database:
  host: "db.example.com"
  port: 5433
  user: "testuser"
  password: "testpass"
  database: "testdb"
  ssl_mode: "require"
kafka:
  brokers:
    - "kafka1:9092"
    - "kafka2:9092"
  group_id: "test-group"
gateway:
  secret_key: "sk-test"
  webhook_hash: "hash-test"
  sandbox: false
chat:
  typing_timeout: 3s
  history_page: 25
payment:
  session_ttl: 10m
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	defer os.Chdir(origDir)

	cfg, err := Load("config")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %v, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %v, want 9000", cfg.Server.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("Database.SSLMode = %v, want require", cfg.Database.SSLMode)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Kafka.Brokers length = %v, want 2", len(cfg.Kafka.Brokers))
	}
	if cfg.Gateway.SecretKey != "sk-test" {
		t.Errorf("Gateway.SecretKey = %v, want sk-test", cfg.Gateway.SecretKey)
	}
	if cfg.Gateway.Sandbox {
		t.Error("Gateway.Sandbox should be false")
	}
	if cfg.Chat.TypingTimeout != 3*time.Second {
		t.Errorf("Chat.TypingTimeout = %v, want 3s", cfg.Chat.TypingTimeout)
	}
	if cfg.Payment.SessionTTL != 10*time.Minute {
		t.Errorf("Payment.SessionTTL = %v, want 10m", cfg.Payment.SessionTTL)
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	defer os.Chdir(origDir)

	cfg, err := Load("nonexistent")
	if err != nil {
		t.Fatalf("Load() should not error when config file not found: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Default Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Chat.TypingTimeout != 5*time.Second {
		t.Errorf("Default Chat.TypingTimeout = %v, want 5s", cfg.Chat.TypingTimeout)
	}
	if cfg.Chat.HistoryPage != 50 {
		t.Errorf("Default Chat.HistoryPage = %v, want 50", cfg.Chat.HistoryPage)
	}
	if cfg.Payment.SessionTTL != 15*time.Minute {
		t.Errorf("Default Payment.SessionTTL = %v, want 15m", cfg.Payment.SessionTTL)
	}
	if !cfg.Gateway.Sandbox {
		t.Error("Default Gateway.Sandbox should be true")
	}
}

func TestLoad_WithEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	defer os.Chdir(origDir)

	os.Setenv("PIXBAY_SERVER_PORT", "3000")
	defer os.Unsetenv("PIXBAY_SERVER_PORT")

	cfg, err := Load("nonexistent")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %v, want 3000 (from env)", cfg.Server.Port)
	}
}
