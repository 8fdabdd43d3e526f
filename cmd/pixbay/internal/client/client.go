package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// envelope mirrors the server response format: data on success, a coded
// error otherwise.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

func New() *Client {
	return &Client{
		baseURL: viper.GetString("api_url"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(method, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if env.Error != nil {
		return fmt.Errorf("%s", env.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// Booking endpoints

type Booking struct {
	ID            string  `json:"id"`
	ClientID      string  `json:"client_id"`
	CreatorID     string  `json:"creator_id"`
	Title         string  `json:"title"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	CreatedAt     string  `json:"created_at"`
}

func (c *Client) ListBookings(page, limit int) ([]Booking, error) {
	var resp []Booking
	path := fmt.Sprintf("/api/v1/bookings?page=%d&limit=%d", page, limit)
	err := c.do("GET", path, nil, &resp)
	return resp, err
}

func (c *Client) GetBooking(id string) (*Booking, error) {
	var resp Booking
	err := c.do("GET", "/api/v1/bookings/"+id, nil, &resp)
	return &resp, err
}

// Wallet endpoints

type Wallet struct {
	ID       string  `json:"id"`
	UserID   string  `json:"user_id"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

func (c *Client) GetWallet() (*Wallet, error) {
	var resp Wallet
	err := c.do("GET", "/api/v1/wallet", nil, &resp)
	return &resp, err
}

type Transaction struct {
	ID          string  `json:"id"`
	BookingID   *string `json:"booking_id"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Provider    string  `json:"provider"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"created_at"`
}

func (c *Client) GetTransactions(page, limit int) ([]Transaction, error) {
	var resp []Transaction
	path := fmt.Sprintf("/api/v1/wallet/transactions?page=%d&limit=%d", page, limit)
	err := c.do("GET", path, nil, &resp)
	return resp, err
}

// Chat endpoints

type Conversation struct {
	ID            string  `json:"id"`
	ParticipantA  string  `json:"participant_a"`
	ParticipantB  string  `json:"participant_b"`
	LastMessage   *string `json:"last_message"`
	LastMessageAt string  `json:"last_message_at"`
	UnreadCount   int     `json:"unread_count"`
}

func (c *Client) ListConversations(page, limit int) ([]Conversation, error) {
	var resp []Conversation
	path := fmt.Sprintf("/api/v1/conversations?page=%d&limit=%d", page, limit)
	err := c.do("GET", path, nil, &resp)
	return resp, err
}

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	FileURL        string `json:"file_url"`
	Status         string `json:"status"`
	SentAt         string `json:"sent_at"`
}

func (c *Client) GetMessages(conversationID string, page, limit int) ([]Message, error) {
	var resp []Message
	path := fmt.Sprintf("/api/v1/conversations/%s/messages?page=%d&limit=%d", conversationID, page, limit)
	err := c.do("GET", path, nil, &resp)
	return resp, err
}
