package notifier

import (
	"strings"
	"testing"

	"github.com/aine1100/pixbay-backend/pkg/sms"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]any
		expected string
	}{
		{
			name:     "all placeholders filled",
			template: "Paid {{currency}} {{amount}} for {{booking_id}}",
			data:     map[string]any{"currency": "RWF", "amount": "5000", "booking_id": "bk-1"},
			expected: "Paid RWF 5000 for bk-1",
		},
		{
			name:     "missing placeholder left intact",
			template: "Ref {{tx_ref}}",
			data:     map[string]any{},
			expected: "Ref {{tx_ref}}",
		},
		{
			name:     "numeric value",
			template: "Amount {{amount}}",
			data:     map[string]any{"amount": 2500},
			expected: "Amount 2500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderTemplate(tt.template, tt.data)
			if got != tt.expected {
				t.Errorf("renderTemplate() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSendTemplatedSMS(t *testing.T) {
	mock := sms.NewMockClient()
	sender := NewSender(mock)

	err := sender.SendTemplatedSMS("+250788123456", TemplatePaymentReceipt, map[string]any{
		"currency":   "RWF",
		"amount":     "5000",
		"booking_id": "bk-1",
		"tx_ref":     "FLW-123",
	})
	if err != nil {
		t.Fatalf("SendTemplatedSMS() error = %v", err)
	}

	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(mock.SentMessages))
	}
	msg := mock.SentMessages[0]
	if msg.To != "+250788123456" {
		t.Errorf("recipient = %s", msg.To)
	}
	if !strings.Contains(msg.Message, "RWF 5000") || !strings.Contains(msg.Message, "FLW-123") {
		t.Errorf("unexpected message body: %s", msg.Message)
	}
}

func TestSendTemplatedSMS_UnknownTemplate(t *testing.T) {
	sender := NewSender(sms.NewMockClient())

	if err := sender.SendTemplatedSMS("+250788123456", "no_such_template", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestSendSMS_NoClient(t *testing.T) {
	sender := NewSender(nil)

	// Without a configured client sends are skipped, not failed.
	if err := sender.SendSMS("+250788123456", "hello"); err != nil {
		t.Errorf("SendSMS() error = %v", err)
	}
}
