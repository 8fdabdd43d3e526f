package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/aine1100/pixbay-backend/pkg/logger"
)

const (
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	opTimeout     = 10 * time.Second
)

// Client is one WebSocket connection for one authenticated user.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan []byte

	service *Service

	mu         sync.RWMutex
	sessions   map[string]*Session
	sendClosed bool
}

func NewClient(id, userID string, conn *websocket.Conn, hub *Hub, service *Service) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan []byte, 256),
		service:  service,
		sessions: make(map[string]*Session),
	}
}

func (c *Client) attachSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.sessions[s.ConversationID]; ok {
		prev.Close()
	}
	c.sessions[s.ConversationID] = s
}

func (c *Client) session(conversationID string) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[conversationID]
	return s, ok
}

func (c *Client) closeSessions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.sessions {
		s.Close()
		delete(c.sessions, id)
	}
}

// push serializes an event onto the send channel, dropping it if the
// buffer is full or the connection is gone.
func (c *Client) push(event *ServerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Str("event", event.Event).Msg("failed to marshal server event")
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sendClosed {
		return
	}
	select {
	case c.Send <- data:
	default:
		// Client buffer full, skip
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.Send)
	}
}

func (c *Client) sendError(msg string) {
	event := newServerEvent(EventError, nil)
	event.Error = msg
	c.push(event)
}

// ReadPump reads client events until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(readDeadline))

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error().Err(err).Str("client_id", c.ID).Msg("websocket read error")
			}
			break
		}

		c.Conn.SetReadDeadline(time.Now().Add(readDeadline))

		var event ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.sendError("Invalid event format")
			continue
		}
		c.handleEvent(&event)
	}
}

func (c *Client) handleEvent(event *ClientEvent) {
	ctx, cancel := context.WithTimeout(c.Hub.ctx, opTimeout)
	defer cancel()

	switch event.Event {
	case EventJoinChat:
		var p JoinPayload
		if err := json.Unmarshal(event.Data, &p); err != nil || p.ConversationID == "" {
			c.sendError("Invalid join payload")
			return
		}
		if err := c.service.Join(ctx, c, p.ConversationID); err != nil {
			c.sendError(errMessage(err))
		}

	case EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(event.Data, &p); err != nil || p.ConversationID == "" {
			c.sendError("Invalid message payload")
			return
		}
		if _, err := c.service.SendMessage(ctx, c.UserID, &p); err != nil {
			c.sendError(errMessage(err))
		}

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return
		}
		if _, ok := c.session(p.ConversationID); ok {
			c.Hub.BroadcastTyping(p.ConversationID, c.UserID)
		}

	case EventStopTyping:
		var p TypingPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return
		}
		if _, ok := c.session(p.ConversationID); ok {
			c.Hub.BroadcastStopTyping(p.ConversationID, c.UserID)
		}

	case EventGetOnlineUsers:
		users, err := c.Hub.OnlineUsers(ctx)
		if err != nil {
			c.sendError("Failed to load online users")
			return
		}
		c.push(newServerEvent(EventOnlineUsers, OnlineUsersPayload{Users: users}))

	default:
		c.sendError("Unknown event: " + event.Event)
	}
}

// WritePump drains the send channel and keeps the connection alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
