package notifier

import (
	"context"
	"fmt"

	"github.com/aine1100/pixbay-backend/internal/repository"
	"github.com/aine1100/pixbay-backend/pkg/events"
	"github.com/aine1100/pixbay-backend/pkg/logger"
)

// Consumer reacts to platform events by sending out-of-band notifications.
// Socket pushes for connected users happen in the server process; the
// consumer covers everyone else.
type Consumer struct {
	subscriber events.Subscriber
	users      *repository.UserRepository
	sender     *Sender
}

func NewConsumer(subscriber events.Subscriber, users *repository.UserRepository, sender *Sender) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		users:      users,
		sender:     sender,
	}
}

// Run subscribes to the notification topics. Handlers run until ctx is
// cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.subscriber.Subscribe(ctx, events.TopicPaymentCompleted, c.onPaymentCompleted(ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.TopicPaymentCompleted, err)
	}
	if err := c.subscriber.Subscribe(ctx, events.TopicNotificationSend, c.onNotificationSend(ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.TopicNotificationSend, err)
	}
	return nil
}

// onPaymentCompleted texts a receipt to the paying client. The creator's
// wallet credit rides the same event.
func (c *Consumer) onPaymentCompleted(ctx context.Context) func(*events.Event) error {
	return func(e *events.Event) error {
		var payload events.PaymentCompletedPayload
		if err := e.DecodePayload(&payload); err != nil {
			logger.Error().Err(err).Str("event_id", e.ID).Msg("Malformed payment completed payload")
			return nil
		}

		user, err := c.users.GetByID(ctx, payload.UserID)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", payload.UserID).Msg("Could not resolve user for receipt")
			return nil
		}

		return c.sender.SendTemplatedSMS(user.Phone, TemplatePaymentReceipt, map[string]any{
			"currency":   payload.Currency,
			"amount":     fmt.Sprintf("%.0f", payload.Amount),
			"booking_id": payload.BookingID,
			"tx_ref":     payload.TxRef,
		})
	}
}

func (c *Consumer) onNotificationSend(ctx context.Context) func(*events.Event) error {
	return func(e *events.Event) error {
		var payload events.NotificationSendPayload
		if err := e.DecodePayload(&payload); err != nil {
			logger.Error().Err(err).Str("event_id", e.ID).Msg("Malformed notification payload")
			return nil
		}

		phone := payload.Phone
		if phone == "" && payload.UserID != "" {
			user, err := c.users.GetByID(ctx, payload.UserID)
			if err != nil {
				logger.Warn().Err(err).Str("user_id", payload.UserID).Msg("Could not resolve notification recipient")
				return nil
			}
			phone = user.Phone
		}
		if phone == "" {
			logger.Warn().Str("event_id", e.ID).Msg("Notification has no recipient")
			return nil
		}

		if payload.Template != "" {
			return c.sender.SendTemplatedSMS(phone, TemplateType(payload.Template), payload.Data)
		}
		if payload.Message != "" {
			return c.sender.SendSMS(phone, payload.Message)
		}

		logger.Warn().Str("event_id", e.ID).Msg("Notification has no message or template")
		return nil
	}
}
