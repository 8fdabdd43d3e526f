package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func scrape(t *testing.T, app *fiber.App) string {
	t.Helper()

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestHandler(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", Handler())

	bodyStr := scrape(t, app)

	if !strings.Contains(bodyStr, "go_goroutines") {
		t.Error("Should contain go_goroutines metric")
	}
	if !strings.Contains(bodyStr, "process_resident_memory_bytes") {
		t.Error("Should contain process_resident_memory_bytes metric")
	}
}

func TestMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{
		ServiceName: "test-service",
		SkipPaths:   []string{"/health"},
	}))
	app.Get("/api/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("healthy")
	})
	app.Get("/metrics", Handler())

	req := httptest.NewRequest("GET", "/api/test", nil)
	resp, _ := app.Test(req)
	resp.Body.Close()

	req = httptest.NewRequest("GET", "/health", nil)
	resp, _ = app.Test(req)
	resp.Body.Close()

	bodyStr := scrape(t, app)

	if !strings.Contains(bodyStr, "http_requests_total") {
		t.Error("Should contain http_requests_total metric")
	}
	if !strings.Contains(bodyStr, "test-service") {
		t.Error("Should contain test-service label")
	}
}

func TestPaymentMetrics(t *testing.T) {
	RecordPaymentTransaction("payment", "card", "success")
	RecordPaymentStep("payment", "selection", "details")

	app := fiber.New()
	app.Get("/metrics", Handler())
	bodyStr := scrape(t, app)

	if !strings.Contains(bodyStr, "payment_transactions_total") {
		t.Error("Should contain payment_transactions_total metric")
	}
	if !strings.Contains(bodyStr, "payment_step_transitions_total") {
		t.Error("Should contain payment_step_transitions_total metric")
	}
}

func TestChatMetrics(t *testing.T) {
	RecordChatMessage("chat", "inbound", "text")
	SetWSConnections("chat", 3)
	SetOnlineUsers("chat", 2)

	app := fiber.New()
	app.Get("/metrics", Handler())
	bodyStr := scrape(t, app)

	if !strings.Contains(bodyStr, "chat_messages_total") {
		t.Error("Should contain chat_messages_total metric")
	}
	if !strings.Contains(bodyStr, "ws_connections") {
		t.Error("Should contain websocket connections gauge")
	}
	if !strings.Contains(bodyStr, "online_users") {
		t.Error("Should contain online users gauge")
	}
}
