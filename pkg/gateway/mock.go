package gateway

import (
	"context"
	"fmt"
	"time"
)

// MockClient is an in-memory gateway used in dev and tests. Card charges
// demand a PIN then an OTP; momo charges settle immediately. The scripted
// fields let tests force specific outcomes.
type MockClient struct {
	ChargeRequests   []ChargeRequest
	ValidateRequests []MockValidateRequest

	// When set, returned verbatim instead of the default behaviour.
	NextChargeResult   *ChargeResult
	NextChargeErr      error
	NextValidateResult *ValidateResult
	NextValidateErr    error
}

type MockValidateRequest struct {
	TxRef string
	OTP   string
}

func NewMockClient() *MockClient {
	return &MockClient{
		ChargeRequests:   make([]ChargeRequest, 0),
		ValidateRequests: make([]MockValidateRequest, 0),
	}
}

func (c *MockClient) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	c.ChargeRequests = append(c.ChargeRequests, *req)

	if c.NextChargeErr != nil {
		err := c.NextChargeErr
		c.NextChargeErr = nil
		return nil, err
	}
	if c.NextChargeResult != nil {
		result := c.NextChargeResult
		c.NextChargeResult = nil
		return result, nil
	}

	switch req.Method {
	case "card":
		if req.PIN == "" {
			return &ChargeResult{Success: true, RequiresPIN: true}, nil
		}
		return &ChargeResult{
			Success:     true,
			RequiresOTP: true,
			TxRef:       fmt.Sprintf("mock-flw-%d", time.Now().UnixNano()),
		}, nil
	case "momo":
		return &ChargeResult{Success: true, Message: "Charge completed"}, nil
	default:
		return &ChargeResult{Message: "unsupported method"}, nil
	}
}

func (c *MockClient) ValidateCharge(ctx context.Context, txRef, otp string) (*ValidateResult, error) {
	c.ValidateRequests = append(c.ValidateRequests, MockValidateRequest{TxRef: txRef, OTP: otp})

	if c.NextValidateErr != nil {
		err := c.NextValidateErr
		c.NextValidateErr = nil
		return nil, err
	}
	if c.NextValidateResult != nil {
		result := c.NextValidateResult
		c.NextValidateResult = nil
		return result, nil
	}

	return &ValidateResult{Success: true, Message: "Charge validated"}, nil
}
