package handler

import (
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/aine1100/pixbay-backend/internal/chat"
	"github.com/aine1100/pixbay-backend/internal/repository"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
	"github.com/aine1100/pixbay-backend/pkg/middleware"
	"github.com/aine1100/pixbay-backend/pkg/response"
)

const maxUploadBytes = 10 << 20

type ChatConfig struct {
	JWTSecret   string
	UploadDir   string
	HistoryPage int
}

// ChatHandler exposes the socket endpoint and the REST side of chat:
// conversation listing, history pages and file uploads.
type ChatHandler struct {
	hub           *chat.Hub
	svc           *chat.Service
	conversations *repository.ConversationRepository
	cfg           ChatConfig
}

func NewChat(hub *chat.Hub, svc *chat.Service, conversations *repository.ConversationRepository, cfg ChatConfig) *ChatHandler {
	if cfg.HistoryPage <= 0 {
		cfg.HistoryPage = 50
	}
	return &ChatHandler{hub: hub, svc: svc, conversations: conversations, cfg: cfg}
}

func (h *ChatHandler) RegisterRoutes(router fiber.Router) {
	conversations := router.Group("/conversations")
	conversations.Get("/", h.ListConversations)
	conversations.Post("/", h.OpenConversation)
	conversations.Get("/:id/messages", h.History)
	conversations.Post("/:id/upload", h.Upload)
}

// RegisterSocket mounts the websocket endpoint. Browsers cannot set
// headers on the upgrade request, so the token rides in the query
// string.
func (h *ChatHandler) RegisterSocket(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			claims, err := middleware.ParseToken(c.Query("token"), h.cfg.JWTSecret)
			if err != nil {
				return fiber.ErrUnauthorized
			}
			c.Locals("user_id", claims.UserID)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/chat", websocket.New(func(conn *websocket.Conn) {
		userID := conn.Locals("user_id").(string)
		client := chat.NewClient(uuid.NewString(), userID, conn, h.hub, h.svc)
		h.hub.Register(client)

		go client.WritePump()
		client.ReadPump()
	}))
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit, offset := pageParams(c, h.cfg.HistoryPage)

	conversations, err := h.conversations.ListByUser(c.Context(), userID, limit, offset)
	if err != nil {
		return apperrors.ErrInternal.WithError(err)
	}
	return response.Success(c, conversations)
}

type openConversationRequest struct {
	UserID string `json:"user_id"`
}

func (h *ChatHandler) OpenConversation(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req openConversationRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return apperrors.ErrValidation.WithDetails("user_id is required")
	}
	if req.UserID == userID {
		return apperrors.ErrValidation.WithDetails("Cannot open a conversation with yourself")
	}

	conversation, err := h.conversations.GetOrCreate(c.Context(), userID, req.UserID)
	if err != nil {
		return apperrors.ErrInternal.WithError(err)
	}
	return response.Success(c, conversation)
}

// History returns one page of messages, newest first. The client is
// expected to render it reversed.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	conversationID := c.Params("id")

	member, err := h.conversations.IsMember(c.Context(), conversationID, userID)
	if err != nil {
		return apperrors.ErrInternal.WithError(err)
	}
	if !member {
		return apperrors.ErrConversationNotFound
	}

	limit, offset := pageParams(c, h.cfg.HistoryPage)
	messages, err := h.conversations.History(c.Context(), conversationID, limit, offset)
	if err != nil {
		return apperrors.ErrInternal.WithError(err)
	}
	return response.Success(c, messages)
}

// Upload stores a file and sends it as a file message on the
// conversation. Concurrent uploads on an open conversation are rejected.
func (h *ChatHandler) Upload(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	conversationID := c.Params("id")

	file, err := c.FormFile("file")
	if err != nil {
		return apperrors.ErrValidation.WithDetails("file is required")
	}
	if file.Size > maxUploadBytes {
		return apperrors.ErrValidation.WithDetails("File exceeds the 10MB limit")
	}

	msg, err := h.svc.Upload(c.Context(), userID, conversationID, func() (string, error) {
		name := uuid.NewString() + filepath.Ext(file.Filename)
		if err := c.SaveFile(file, filepath.Join(h.cfg.UploadDir, name)); err != nil {
			return "", err
		}
		return "/uploads/" + name, nil
	})
	if err != nil {
		return err
	}
	return response.Created(c, msg)
}

func pageParams(c *fiber.Ctx, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 1 {
		offset = (v - 1) * limit
	}
	return limit, offset
}
