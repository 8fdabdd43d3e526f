package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aine1100/pixbay-backend/internal/types"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
	"github.com/aine1100/pixbay-backend/pkg/events"
	"github.com/aine1100/pixbay-backend/pkg/logger"
	"github.com/aine1100/pixbay-backend/pkg/metrics"
)

// Store is the persistence slice the chat service needs.
type Store interface {
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
	History(ctx context.Context, conversationID string, limit, offset int) ([]types.Message, error)
	SaveMessage(ctx context.Context, msg *types.Message) error
	MarkRead(ctx context.Context, conversationID, userID string) error
}

type ServiceConfig struct {
	TypingTimeout time.Duration
	HistoryPage   int
}

// Service coordinates conversations between the hub, the store and the
// event stream.
type Service struct {
	store     Store
	publisher events.Publisher
	hub       *Hub
	cfg       ServiceConfig
}

func NewService(store Store, publisher events.Publisher, hub *Hub, cfg ServiceConfig) *Service {
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = 5 * time.Second
	}
	if cfg.HistoryPage <= 0 {
		cfg.HistoryPage = 50
	}
	return &Service{store: store, publisher: publisher, hub: hub, cfg: cfg}
}

// Join opens a conversation on a client's connection. History is loaded
// best-effort; a failed load still joins with an empty list.
func (s *Service) Join(ctx context.Context, client *Client, conversationID string) error {
	member, err := s.store.IsMember(ctx, conversationID, client.UserID)
	if err != nil {
		return apperrors.ErrInternal.WithError(err)
	}
	if !member {
		return apperrors.ErrConversationNotFound
	}

	session := NewSession(conversationID, client.UserID, SessionConfig{
		TypingTimeout: s.cfg.TypingTimeout,
		OnTypingExpired: func(conversationID, userID string) {
			client.push(newServerEvent(EventUserStopTyping, TypingPayload{
				ConversationID: conversationID,
				UserID:         userID,
			}))
		},
	})

	session.Load(ctx, func(ctx context.Context) ([]types.Message, error) {
		return s.store.History(ctx, conversationID, s.cfg.HistoryPage, 0)
	})

	s.hub.JoinConversation(client, session)

	if err := s.store.MarkRead(ctx, conversationID, client.UserID); err != nil {
		logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("mark read failed on join")
	}
	return nil
}

// SendMessage persists a message, fans it out to open sessions and
// publishes it on the event stream. The sender gets no local echo; their
// own copy arrives through receive_message like everyone else's.
func (s *Service) SendMessage(ctx context.Context, senderID string, p *SendMessagePayload) (*types.Message, error) {
	if p.Type == "" {
		p.Type = types.MessageTypeText
	}
	if p.Type != types.MessageTypeText && p.Type != types.MessageTypeFile {
		return nil, apperrors.ErrValidation.WithMessage("Unsupported message type")
	}
	if p.Type == types.MessageTypeText && p.Content == "" {
		return nil, apperrors.ErrValidation.WithMessage("Message content is required")
	}
	if p.Type == types.MessageTypeFile && p.FileURL == "" {
		return nil, apperrors.ErrValidation.WithMessage("File URL is required")
	}

	member, err := s.store.IsMember(ctx, p.ConversationID, senderID)
	if err != nil {
		return nil, apperrors.ErrInternal.WithError(err)
	}
	if !member {
		return nil, apperrors.ErrConversationNotFound
	}

	msg := &types.Message{
		ID:             uuid.NewString(),
		ConversationID: p.ConversationID,
		SenderID:       senderID,
		Type:           p.Type,
		Content:        p.Content,
		FileURL:        p.FileURL,
		Status:         types.MessageStatusSent,
		SentAt:         time.Now().UTC(),
	}

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, apperrors.ErrInternal.WithError(err)
	}
	metrics.RecordChatMessage("chat", "inbound", msg.Type)

	recipients := s.hub.DeliverMessage(*msg)
	go s.markDelivered(msg.ConversationID, recipients)
	go s.publishMessage(msg)

	return msg, nil
}

// Upload runs a guarded file upload for a conversation. While the user
// has the conversation open, only one upload may run at a time; the save
// callback produces the stored file URL and the resulting file message
// flows through the normal send path.
func (s *Service) Upload(ctx context.Context, userID, conversationID string, save func() (string, error)) (*types.Message, error) {
	if session, ok := s.hub.Session(userID, conversationID); ok {
		if err := session.BeginUpload(); err != nil {
			return nil, err
		}
		defer session.EndUpload()
	}

	fileURL, err := save()
	if err != nil {
		return nil, apperrors.ErrUploadFailed.WithError(err)
	}

	return s.SendMessage(ctx, userID, &SendMessagePayload{
		ConversationID: conversationID,
		Type:           types.MessageTypeFile,
		FileURL:        fileURL,
	})
}

// NotifyPaymentCompleted pushes a settlement notice to a user's sockets.
func (s *Service) NotifyPaymentCompleted(userID string, p PaymentCompletedPayload) {
	s.hub.NotifyUser(userID, newServerEvent(EventPaymentCompleted, p))
}

func (s *Service) markDelivered(conversationID string, userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, userID := range userIDs {
		if err := s.store.MarkRead(ctx, conversationID, userID); err != nil {
			logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("mark read failed on delivery")
		}
	}
}

func (s *Service) publishMessage(msg *types.Message) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := events.NewEvent(events.EventTypeMessageSent, "chat", msg)
	if err := s.publisher.Publish(ctx, events.TopicMessageSent, event); err != nil {
		logger.Error().Err(err).Str("message_id", msg.ID).Msg("failed to publish message event")
	}
}

// errMessage maps an error to something safe to show on the socket.
func errMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong"
}
