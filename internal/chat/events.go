package chat

import (
	"encoding/json"
	"time"
)

// Socket event names. Client to server.
const (
	EventJoinChat       = "join_chat"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventGetOnlineUsers = "get_online_users"
)

// Server to client.
const (
	EventReceiveMessage   = "receive_message"
	EventUserTyping       = "user_typing"
	EventUserStopTyping   = "user_stop_typing"
	EventUserOnline       = "user_online"
	EventUserOffline      = "user_offline"
	EventOnlineUsers      = "online_users"
	EventPaymentCompleted = "payment_completed"
	EventError            = "error"
)

// ClientEvent is the envelope for everything the client sends.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the envelope for everything pushed to the client.
type ServerEvent struct {
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newServerEvent(event string, data any) *ServerEvent {
	return &ServerEvent{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

type JoinPayload struct {
	ConversationID string `json:"conversation_id"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	FileURL        string `json:"file_url,omitempty"`
}

type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
}

type PresencePayload struct {
	UserID string `json:"user_id"`
}

type OnlineUsersPayload struct {
	Users []string `json:"users"`
}

type PaymentCompletedPayload struct {
	BookingID string  `json:"booking_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	TxRef     string  `json:"tx_ref"`
}
