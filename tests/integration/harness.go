package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// =============================================================================
// Integration Test Harness
// =============================================================================
// Utilities for running integration tests against the Flutterwave mock
// server (tools/mockservers/flutterwave). Handles setup, reset and HTTP
// client helpers.
// =============================================================================

// Config holds the mock server URLs
type Config struct {
	FlutterwaveURL string
}

// DefaultConfig returns the default configuration for local testing
func DefaultConfig() *Config {
	return &Config{
		FlutterwaveURL: getEnvOrDefault("FLW_MOCK_URL", "http://localhost:8090"),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Harness provides utilities for integration tests
type Harness struct {
	t      *testing.T
	config *Config
	client *http.Client
}

// NewHarness creates a new test harness
func NewHarness(t *testing.T) *Harness {
	return &Harness{
		t:      t,
		config: DefaultConfig(),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Config returns the harness configuration
func (h *Harness) Config() *Config {
	return h.config
}

// Request represents an HTTP request configuration
type Request struct {
	Method  string
	URL     string
	Body    any
	Headers map[string]string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do executes an HTTP request and returns the response
func (h *Harness) Do(req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		jsonBody, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequest(req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
	}, nil
}

// JSON unmarshals the response body into the given value
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// AssertStatus fails the test when the status code differs
func (h *Harness) AssertStatus(resp *Response, want int) {
	h.t.Helper()
	if resp.StatusCode != want {
		h.t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, resp.Body)
	}
}

// ResetFlutterwave resets the Flutterwave mock server state
func (h *Harness) ResetFlutterwave() error {
	resp, err := h.Do(Request{
		Method: "POST",
		URL:    h.config.FlutterwaveURL + "/admin/reset",
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("reset failed with status %d", resp.StatusCode)
	}
	return nil
}

// WaitForFlutterwave waits for the mock server to be ready
func (h *Harness) WaitForFlutterwave(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := h.Do(Request{
			Method: "GET",
			URL:    h.config.FlutterwaveURL + "/health",
		})
		if err == nil && resp.StatusCode == 200 {
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("flutterwave mock not ready after %s", timeout)
}
