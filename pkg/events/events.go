package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every Kafka message.
//
// Topic naming: pixbay.<domain>.<action>
// Event types are versioned: "payment.completed.v1". Breaking payload changes
// require a new version; consumers should tolerate unknown fields.
type Event struct {
	// ID is a unique identifier for this event instance
	ID string `json:"event_id"`

	// Type describes the event in format: <domain>.<action>.v<version>
	Type string `json:"event_type"`

	// Time is when the event actually happened (not when it was published)
	Time time.Time `json:"occurred_at"`

	// CorrelationID links related events across consumers
	CorrelationID string `json:"correlation_id,omitempty"`

	// Source identifies the producer
	Source string `json:"source"`

	// Payload contains the event-specific data
	Payload any `json:"payload"`

	// Metadata contains optional key-value pairs for tracing and debugging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType, source string, payload any) *Event {
	return &Event{
		ID:       uuid.New().String(),
		Type:     eventType,
		Time:     time.Now().UTC(),
		Source:   source,
		Payload:  payload,
		Metadata: make(map[string]string),
	}
}

// WithCorrelationID sets the correlation ID for request tracing
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithMetadata adds a metadata key-value pair
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// DecodePayload unmarshals the event payload into v. Payloads arrive from
// Kafka as generic maps, so consumers decode into their own types.
func (e *Event) DecodePayload(v any) error {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// =============================================================================
// Topic Registry
// =============================================================================

const (
	// Payment Domain
	// Published by: payment webhook handler
	// Consumed by: chat hub (payment_completed push), notification workers

	// TopicPaymentInitiated is published when a charge is sent to the gateway
	TopicPaymentInitiated = "pixbay.payments.initiated"

	// TopicPaymentCompleted is published when the gateway confirms a charge
	// Payload: PaymentCompletedPayload
	TopicPaymentCompleted = "pixbay.payments.completed"

	// TopicPaymentFailed is published when a charge is rejected
	TopicPaymentFailed = "pixbay.payments.failed"

	// Chat Domain

	// TopicMessageSent is published for every persisted chat message.
	// Payload: the persisted message record.
	TopicMessageSent = "pixbay.chat.message_sent"

	// Notification Domain

	// TopicNotificationSend is published to trigger out-of-band notifications
	// Payload: NotificationSendPayload
	TopicNotificationSend = "pixbay.notifications.send"
)

// AllTopics returns all registered topics for admin/setup purposes
var AllTopics = []string{
	TopicPaymentInitiated,
	TopicPaymentCompleted,
	TopicPaymentFailed,
	TopicMessageSent,
	TopicNotificationSend,
}

// Event types (versioned)
const (
	EventTypePaymentInitiated = "payment.initiated.v1"
	EventTypePaymentCompleted = "payment.completed.v1"
	EventTypePaymentFailed    = "payment.failed.v1"

	EventTypeMessageSent = "chat.message_sent.v1"

	EventTypeNotificationSend = "notification.send.v1"
)

// PaymentCompletedPayload is the payload for TopicPaymentCompleted.
type PaymentCompletedPayload struct {
	BookingID string  `json:"booking_id"`
	UserID    string  `json:"user_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	TxRef     string  `json:"tx_ref"`
	Status    string  `json:"status"`
}

// NotificationSendPayload is the payload for TopicNotificationSend.
type NotificationSendPayload struct {
	UserID   string         `json:"user_id,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Template string         `json:"template,omitempty"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Publisher publishes events to Kafka topics
type Publisher interface {
	// Publish sends an event to the specified topic
	Publish(ctx context.Context, topic string, event *Event) error

	// Close closes the publisher and releases resources
	Close() error
}

// Subscriber consumes events from Kafka topics
type Subscriber interface {
	// Subscribe registers a handler for events on the specified topic
	Subscribe(ctx context.Context, topic string, handler func(*Event) error) error

	// Close closes the subscriber and releases resources
	Close() error
}
