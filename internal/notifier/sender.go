package notifier

import (
	"fmt"
	"strings"

	"github.com/aine1100/pixbay-backend/pkg/logger"
)

// TemplateType identifies a predefined notification template
type TemplateType string

const (
	TemplatePaymentReceipt   TemplateType = "payment_receipt"
	TemplateWalletCredited   TemplateType = "wallet_credited"
	TemplateBookingConfirmed TemplateType = "booking_confirmed"
	TemplateNewMessage       TemplateType = "new_message"
)

type Template struct {
	Type TemplateType
	Name string
	Body string
}

// SMSClient interface for sending SMS
type SMSClient interface {
	Send(to, message string) error
}

// Sender renders templates and dispatches SMS notifications
type Sender struct {
	sms       SMSClient
	templates map[TemplateType]Template
}

func NewSender(smsClient SMSClient) *Sender {
	s := &Sender{
		sms:       smsClient,
		templates: make(map[TemplateType]Template),
	}
	s.loadTemplates()
	return s
}

func (s *Sender) loadTemplates() {
	s.templates = map[TemplateType]Template{
		TemplatePaymentReceipt: {
			Type: TemplatePaymentReceipt,
			Name: "Payment Receipt",
			Body: "Your Pixbay payment of {{currency}} {{amount}} for booking {{booking_id}} was successful. Ref: {{tx_ref}}",
		},
		TemplateWalletCredited: {
			Type: TemplateWalletCredited,
			Name: "Wallet Credited",
			Body: "Your Pixbay wallet has been credited with {{currency}} {{amount}} for booking {{booking_id}}.",
		},
		TemplateBookingConfirmed: {
			Type: TemplateBookingConfirmed,
			Name: "Booking Confirmed",
			Body: "Your Pixbay booking {{booking_id}} is confirmed for {{date}}.",
		},
		TemplateNewMessage: {
			Type: TemplateNewMessage,
			Name: "New Message",
			Body: "You have a new message on Pixbay from {{sender}}.",
		},
	}
}

// GetTemplate returns a specific template
func (s *Sender) GetTemplate(templateType TemplateType) (*Template, bool) {
	t, ok := s.templates[templateType]
	if !ok {
		return nil, false
	}
	return &t, true
}

// SendSMS sends a raw SMS notification
func (s *Sender) SendSMS(phone, message string) error {
	if s.sms == nil {
		logger.Warn().Msg("SMS client not configured, skipping SMS")
		return nil
	}

	if err := s.sms.Send(phone, message); err != nil {
		logger.Error().Err(err).Str("phone", phone).Msg("Failed to send SMS")
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	logger.Info().Str("phone", phone).Msg("SMS sent successfully")
	return nil
}

// SendTemplatedSMS sends an SMS using a template
func (s *Sender) SendTemplatedSMS(phone string, templateType TemplateType, data map[string]any) error {
	template, ok := s.GetTemplate(templateType)
	if !ok {
		return fmt.Errorf("template not found: %s", templateType)
	}

	return s.SendSMS(phone, renderTemplate(template.Body, data))
}

func renderTemplate(template string, data map[string]any) string {
	result := template
	for key, value := range data {
		placeholder := "{{" + key + "}}"
		result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", value))
	}
	return result
}
