package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aine1100/pixbay-backend/pkg/telemetry"
)

// =============================================================================
// Flutterwave card / mobile-money charges
// =============================================================================
// The gateway owns all real payment logic. This client only shapes requests
// and reduces the gateway's heterogeneous responses into ChargeResult, which
// the payment wizard consumes.
// =============================================================================

type Config struct {
	SecretKey   string
	WebhookHash string
	CallbackURL string
	Sandbox     bool
}

type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

func NewClient(cfg *Config) *Client {
	return &Client{
		config: cfg,
		httpClient: telemetry.WrapHTTPClient(&http.Client{
			Timeout: 30 * time.Second,
		}),
		baseURL: "https://api.flutterwave.com/v3",
	}
}

type CardDetails struct {
	Number string `json:"card_number"`
	Expiry string `json:"expiry"` // MM/YY
	CVV    string `json:"cvv"`
}

type MomoDetails struct {
	PhoneNumber string `json:"phone_number"`
	Network     string `json:"network"` // MTN, AIRTEL
}

type ChargeRequest struct {
	TxRef    string
	Amount   float64
	Currency string
	Email    string
	Method   string // "card" or "momo"
	Card     *CardDetails
	Momo     *MomoDetails

	// PIN is attached on authorization retries; some mobile-money providers
	// gate on it the same way card issuers do.
	PIN string
}

// ChargeResult is the reduced outcome of an initiate call. Exactly one of
// RequiresOTP / RequiresPIN / PaymentLink / terminal success applies.
type ChargeResult struct {
	Success     bool   `json:"success"`
	RequiresOTP bool   `json:"requires_otp,omitempty"`
	RequiresPIN bool   `json:"requires_pin,omitempty"`
	TxRef       string `json:"flw_ref,omitempty"`
	PaymentLink string `json:"payment_link,omitempty"`
	Message     string `json:"message,omitempty"`
}

type ValidateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type chargePayload struct {
	TxRef       string  `json:"tx_ref"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Email       string  `json:"email,omitempty"`
	RedirectURL string  `json:"redirect_url,omitempty"`

	CardNumber  string `json:"card_number,omitempty"`
	Expiry      string `json:"expiry,omitempty"`
	CVV         string `json:"cvv,omitempty"`
	PIN         string `json:"pin,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Network     string `json:"network,omitempty"`
}

type chargeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status            string `json:"status"`
		FlwRef            string `json:"flw_ref"`
		TxRef             string `json:"tx_ref"`
		Link              string `json:"link"`
		ProcessorResponse string `json:"processor_response"`
	} `json:"data"`
	Meta struct {
		Authorization struct {
			Mode     string `json:"mode"` // "pin", "otp", "redirect"
			Redirect string `json:"redirect"`
		} `json:"authorization"`
	} `json:"meta"`
}

// Charge initiates a card or mobile-money charge.
func (c *Client) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	payload := chargePayload{
		TxRef:       req.TxRef,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Email:       req.Email,
		RedirectURL: c.config.CallbackURL,
	}

	var chargeType string
	switch req.Method {
	case "card":
		if req.Card == nil {
			return nil, fmt.Errorf("card charge requires card details")
		}
		chargeType = "card"
		payload.CardNumber = strings.ReplaceAll(req.Card.Number, " ", "")
		payload.Expiry = req.Card.Expiry
		payload.CVV = req.Card.CVV
		payload.PIN = req.PIN
	case "momo":
		if req.Momo == nil {
			return nil, fmt.Errorf("momo charge requires momo details")
		}
		chargeType = "mobile_money_rwanda"
		payload.PhoneNumber = req.Momo.PhoneNumber
		payload.Network = req.Momo.Network
		payload.PIN = req.PIN
	default:
		return nil, fmt.Errorf("unsupported charge method %q", req.Method)
	}

	var resp chargeResponse
	url := fmt.Sprintf("%s/charges?type=%s", c.baseURL, chargeType)
	if err := c.post(ctx, url, payload, &resp); err != nil {
		return nil, err
	}

	return reduceCharge(&resp), nil
}

// ValidateCharge completes an OTP-gated charge.
func (c *Client) ValidateCharge(ctx context.Context, txRef, otp string) (*ValidateResult, error) {
	payload := map[string]string{
		"flw_ref": txRef,
		"otp":     otp,
	}

	var resp chargeResponse
	url := fmt.Sprintf("%s/validate-charge", c.baseURL)
	if err := c.post(ctx, url, payload, &resp); err != nil {
		return nil, err
	}

	return &ValidateResult{
		Success: resp.Status == "success" && resp.Data.Status == "successful",
		Message: resp.Message,
	}, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, out any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return nil
}

// reduceCharge folds the gateway response into the five shapes the wizard
// understands: success, otp required, pin required, hosted redirect, failure.
func reduceCharge(resp *chargeResponse) *ChargeResult {
	result := &ChargeResult{Message: resp.Message}

	if resp.Status != "success" {
		return result
	}

	switch resp.Meta.Authorization.Mode {
	case "otp":
		result.Success = true
		result.RequiresOTP = true
		result.TxRef = resp.Data.FlwRef
	case "pin":
		result.Success = true
		result.RequiresPIN = true
	case "redirect":
		result.Success = true
		result.PaymentLink = resp.Meta.Authorization.Redirect
	default:
		if resp.Data.Link != "" {
			result.Success = true
			result.PaymentLink = resp.Data.Link
			return result
		}
		result.Success = resp.Data.Status == "successful" || resp.Data.Status == "pending"
		if !result.Success && resp.Data.ProcessorResponse != "" {
			result.Message = resp.Data.ProcessorResponse
		}
	}

	return result
}
