package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
)

// WebhookEvent is the parsed shape of a gateway charge webhook.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		TxRef    string  `json:"tx_ref"`
		FlwRef   string  `json:"flw_ref"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Status   string  `json:"status"`
	} `json:"data"`
}

// ParseWebhook verifies the verif-hash header and decodes the payload.
// The signature check uses constant-time comparison.
func ParseWebhook(body []byte, signature, expectedHash string) (*WebhookEvent, error) {
	if expectedHash == "" {
		return nil, fmt.Errorf("webhook hash not configured")
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expectedHash)) != 1 {
		return nil, fmt.Errorf("webhook signature mismatch")
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	return &event, nil
}

// Completed reports whether the webhook signals a successfully settled charge.
func (e *WebhookEvent) Completed() bool {
	return e.Event == "charge.completed" && e.Data.Status == "successful"
}
