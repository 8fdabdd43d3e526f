package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"
)

// =============================================================================
// Flutterwave Mock Server
// =============================================================================
// Simulates the Flutterwave v3 charge API for local development and
// integration testing. It supports:
// - Card charges with pin and otp authorization steps
// - Rwanda mobile-money charges
// - OTP validation
// - Webhook simulation for settled charges
// =============================================================================

type Charge struct {
	FlwRef    string
	TxRef     string
	Amount    float64
	Currency  string
	Method    string
	Status    string // pending_otp, successful, failed
	CreatedAt time.Time
}

type Server struct {
	mu          sync.RWMutex
	charges     map[string]*Charge
	webhookURL  string
	webhookHash string
}

func NewServer() *Server {
	return &Server{
		charges:     make(map[string]*Charge),
		webhookURL:  os.Getenv("WEBHOOK_URL"),
		webhookHash: getEnvOrDefault("WEBHOOK_HASH", "mock-hash"),
	}
}

type chargeRequest struct {
	TxRef       string  `json:"tx_ref"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	CardNumber  string  `json:"card_number"`
	Expiry      string  `json:"expiry"`
	CVV         string  `json:"cvv"`
	PIN         string  `json:"pin"`
	PhoneNumber string  `json:"phone_number"`
	Network     string  `json:"network"`
}

func main() {
	server := NewServer()

	app := fiber.New(fiber.Config{AppName: "Flutterwave Mock"})
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	app.Post("/v3/charges", server.handleCharge)
	app.Post("/v3/validate-charge", server.handleValidate)

	app.Post("/admin/reset", server.handleReset)
	app.Post("/admin/charges/:ref/settle", server.handleSettle)

	port := getEnvOrDefault("PORT", "8090")
	log.Printf("Flutterwave mock listening on :%s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatal(err)
	}
}

func (s *Server) handleCharge(c *fiber.Ctx) error {
	if !strings.HasPrefix(c.Get("Authorization"), "Bearer ") {
		return c.Status(401).JSON(fiber.Map{"status": "error", "message": "Unauthorized"})
	}

	var req chargeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "Invalid payload"})
	}

	chargeType := c.Query("type")
	switch chargeType {
	case "card":
		return s.cardCharge(c, &req)
	case "mobile_money_rwanda":
		return s.momoCharge(c, &req)
	default:
		return c.Status(400).JSON(fiber.Map{
			"status":  "error",
			"message": fmt.Sprintf("Unsupported charge type %q", chargeType),
		})
	}
}

func (s *Server) cardCharge(c *fiber.Ctx, req *chargeRequest) error {
	// Cards ending in 0002 always decline.
	if strings.HasSuffix(req.CardNumber, "0002") {
		return c.JSON(fiber.Map{
			"status":  "error",
			"message": "Card declined",
			"data":    fiber.Map{"status": "failed", "processor_response": "Do not honor"},
		})
	}

	if req.PIN == "" {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Charge initiated",
			"meta":    fiber.Map{"authorization": fiber.Map{"mode": "pin"}},
		})
	}

	charge := &Charge{
		FlwRef:    "FLW-MOCK-" + uuid.NewString(),
		TxRef:     req.TxRef,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    "card",
		Status:    "pending_otp",
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.charges[charge.FlwRef] = charge
	s.mu.Unlock()

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Charge initiated",
		"data":    fiber.Map{"flw_ref": charge.FlwRef, "tx_ref": charge.TxRef},
		"meta":    fiber.Map{"authorization": fiber.Map{"mode": "otp"}},
	})
}

func (s *Server) momoCharge(c *fiber.Ctx, req *chargeRequest) error {
	charge := &Charge{
		FlwRef:    "FLW-MOCK-" + uuid.NewString(),
		TxRef:     req.TxRef,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    "momo",
		Status:    "successful",
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.charges[charge.FlwRef] = charge
	s.mu.Unlock()

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Charge completed",
		"data":    fiber.Map{"flw_ref": charge.FlwRef, "tx_ref": charge.TxRef, "status": "successful"},
	})
}

func (s *Server) handleValidate(c *fiber.Ctx) error {
	var req struct {
		FlwRef string `json:"flw_ref"`
		OTP    string `json:"otp"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "Invalid payload"})
	}

	s.mu.Lock()
	charge, ok := s.charges[req.FlwRef]
	if ok && charge.Status == "pending_otp" && req.OTP == "12345" {
		charge.Status = "successful"
	}
	s.mu.Unlock()

	if !ok {
		return c.JSON(fiber.Map{"status": "error", "message": "Charge not found"})
	}
	if charge.Status != "successful" {
		return c.JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid OTP",
			"data":    fiber.Map{"status": "failed"},
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Charge validated",
		"data":    fiber.Map{"flw_ref": charge.FlwRef, "status": "successful"},
	})
}

// handleSettle fires the charge.completed webhook for a charge, the way
// Flutterwave notifies merchants out of band.
func (s *Server) handleSettle(c *fiber.Ctx) error {
	ref := c.Params("ref")

	s.mu.RLock()
	charge, ok := s.charges[ref]
	s.mu.RUnlock()
	if !ok {
		return c.Status(404).JSON(fiber.Map{"status": "error", "message": "Charge not found"})
	}

	if s.webhookURL == "" {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "WEBHOOK_URL not configured"})
	}

	payload, _ := json.Marshal(fiber.Map{
		"event": "charge.completed",
		"data": fiber.Map{
			"tx_ref":   charge.TxRef,
			"flw_ref":  charge.FlwRef,
			"amount":   charge.Amount,
			"currency": charge.Currency,
			"status":   "successful",
		},
	})

	req, err := http.NewRequest("POST", s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("verif-hash", s.webhookHash)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return c.Status(502).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	resp.Body.Close()

	return c.JSON(fiber.Map{"status": "success", "delivered": resp.StatusCode})
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	s.mu.Lock()
	s.charges = make(map[string]*Charge)
	s.mu.Unlock()
	return c.JSON(fiber.Map{"status": "success"})
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
