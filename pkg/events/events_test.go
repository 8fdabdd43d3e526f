package events

import (
	"testing"
	"time"
)

func TestEventTopics(t *testing.T) {
	topics := []struct {
		name  string
		topic string
	}{
		{"TopicPaymentInitiated", TopicPaymentInitiated},
		{"TopicPaymentCompleted", TopicPaymentCompleted},
		{"TopicPaymentFailed", TopicPaymentFailed},
		{"TopicMessageSent", TopicMessageSent},
		{"TopicNotificationSend", TopicNotificationSend},
	}

	for _, tt := range topics {
		t.Run(tt.name, func(t *testing.T) {
			if tt.topic == "" {
				t.Errorf("%s should not be empty", tt.name)
			}
			if len(tt.topic) < 10 {
				t.Errorf("%s topic name too short: %s", tt.name, tt.topic)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventTypePaymentCompleted, "payment", PaymentCompletedPayload{
		BookingID: "bk-1",
		UserID:    "user-1",
		Amount:    5000,
		Currency:  "RWF",
	})

	if event.ID == "" {
		t.Error("NewEvent should generate an ID")
	}
	if event.Type != EventTypePaymentCompleted {
		t.Errorf("Event.Type = %v, want %v", event.Type, EventTypePaymentCompleted)
	}
	if event.Source != "payment" {
		t.Errorf("Event.Source = %v, want payment", event.Source)
	}
	if time.Since(event.Time) > time.Minute {
		t.Errorf("Event.Time not recent: %v", event.Time)
	}

	event.WithCorrelationID("req-1").WithMetadata("trace_id", "abc-123")
	if event.CorrelationID != "req-1" {
		t.Errorf("Event.CorrelationID = %v, want req-1", event.CorrelationID)
	}
	if event.Metadata["trace_id"] != "abc-123" {
		t.Errorf("Event.Metadata[trace_id] = %v, want abc-123", event.Metadata["trace_id"])
	}
}

func TestDecodePayload(t *testing.T) {
	// Consumers see payloads as generic maps after the Kafka roundtrip.
	event := &Event{
		Type: EventTypePaymentCompleted,
		Payload: map[string]any{
			"booking_id": "bk-1",
			"user_id":    "user-1",
			"amount":     5000.0,
			"currency":   "RWF",
			"tx_ref":     "FLW-123",
			"status":     "completed",
		},
	}

	var payload PaymentCompletedPayload
	if err := event.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}

	if payload.BookingID != "bk-1" || payload.UserID != "user-1" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if payload.Amount != 5000 || payload.Currency != "RWF" {
		t.Errorf("unexpected amounts: %+v", payload)
	}
	if payload.TxRef != "FLW-123" {
		t.Errorf("TxRef = %v, want FLW-123", payload.TxRef)
	}
}
