package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aine1100/pixbay-backend/internal/types"
	"github.com/aine1100/pixbay-backend/pkg/logger"
	"github.com/aine1100/pixbay-backend/pkg/metrics"
)

// Hub owns the lifecycle of every chat socket. Handlers acquire clients
// through Register and release them when the read pump exits; nothing
// outside the hub holds a raw connection.
type Hub struct {
	clients       map[*Client]bool
	users         map[string]map[*Client]bool
	conversations map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	presence PresenceStore

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(presence PresenceStore) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:       make(map[*Client]bool),
		users:         make(map[string]map[*Client]bool),
		conversations: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		presence:      presence,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Run is the hub's main loop. Presence transitions happen here so a user
// with several tabs open flips online exactly once.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Stop shuts the hub down.
func (h *Hub) Stop() {
	h.cancel()
}

// Register hands a new connection to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	first := len(h.users[client.UserID]) == 0
	if first {
		h.users[client.UserID] = make(map[*Client]bool)
	}
	h.users[client.UserID][client] = true
	connections := len(h.clients)
	online := len(h.users)
	h.mu.Unlock()

	metrics.SetWSConnections("chat", connections)
	logger.Info().Str("client_id", client.ID).Str("user_id", client.UserID).Msg("chat client connected")

	if first {
		if err := h.presence.Add(h.ctx, client.UserID); err != nil {
			logger.Error().Err(err).Str("user_id", client.UserID).Msg("presence add failed")
		}
		metrics.SetOnlineUsers("chat", online)
		h.broadcastAll(newServerEvent(EventUserOnline, PresencePayload{UserID: client.UserID}), client)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	client.closeSend()

	for conversationID := range client.sessions {
		if members, ok := h.conversations[conversationID]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.conversations, conversationID)
			}
		}
	}

	last := false
	if conns, ok := h.users[client.UserID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.users, client.UserID)
			last = true
		}
	}
	connections := len(h.clients)
	online := len(h.users)
	h.mu.Unlock()

	client.closeSessions()
	metrics.SetWSConnections("chat", connections)
	logger.Info().Str("client_id", client.ID).Str("user_id", client.UserID).Msg("chat client disconnected")

	if last {
		if err := h.presence.Remove(h.ctx, client.UserID); err != nil {
			logger.Error().Err(err).Str("user_id", client.UserID).Msg("presence remove failed")
		}
		metrics.SetOnlineUsers("chat", online)
		h.broadcastAll(newServerEvent(EventUserOffline, PresencePayload{UserID: client.UserID}), nil)
	}
}

// JoinConversation attaches a client session to a conversation stream.
func (h *Hub) JoinConversation(client *Client, session *Session) {
	h.mu.Lock()
	if _, ok := h.conversations[session.ConversationID]; !ok {
		h.conversations[session.ConversationID] = make(map[*Client]bool)
	}
	h.conversations[session.ConversationID][client] = true
	h.mu.Unlock()

	client.attachSession(session)
	logger.Debug().
		Str("client_id", client.ID).
		Str("conversation_id", session.ConversationID).
		Msg("client joined conversation")
}

// Session finds a live session for a user and conversation, if any
// connection has it open.
func (h *Hub) Session(userID, conversationID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.users[userID] {
		if s, ok := client.session(conversationID); ok {
			return s, true
		}
	}
	return nil, false
}

// DeliverMessage pushes a persisted message to every client that has the
// conversation open. Each client's session dedupes by message ID, so a
// redelivered message reaches the socket at most once. Returns the user
// IDs, other than the sender, that received it.
func (h *Hub) DeliverMessage(msg types.Message) []string {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.conversations[msg.ConversationID]))
	for client := range h.conversations[msg.ConversationID] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	recipients := make([]string, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, client := range members {
		session, ok := client.session(msg.ConversationID)
		if !ok || !session.OnInboundMessage(msg) {
			continue
		}
		client.push(newServerEvent(EventReceiveMessage, msg))
		metrics.RecordChatMessage("chat", "outbound", msg.Type)
		if client.UserID != msg.SenderID && !seen[client.UserID] {
			seen[client.UserID] = true
			recipients = append(recipients, client.UserID)
		}
	}

	return recipients
}

// BroadcastTyping raises the typing flag on every other participant's
// session. Renewals reset the expiry silently; only a fresh flag is
// pushed to the socket.
func (h *Hub) BroadcastTyping(conversationID, fromUserID string) {
	for _, client := range h.conversationClients(conversationID) {
		session, ok := client.session(conversationID)
		if !ok {
			continue
		}
		if session.SetTyping(fromUserID) {
			client.push(newServerEvent(EventUserTyping, TypingPayload{
				ConversationID: conversationID,
				UserID:         fromUserID,
			}))
		}
	}
}

// BroadcastStopTyping clears the flag and notifies sockets that had it.
func (h *Hub) BroadcastStopTyping(conversationID, fromUserID string) {
	for _, client := range h.conversationClients(conversationID) {
		session, ok := client.session(conversationID)
		if !ok {
			continue
		}
		if session.ClearTyping(fromUserID) {
			client.push(newServerEvent(EventUserStopTyping, TypingPayload{
				ConversationID: conversationID,
				UserID:         fromUserID,
			}))
		}
	}
}

// NotifyUser pushes an event to every connection a user has open.
func (h *Hub) NotifyUser(userID string, event *ServerEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.users[userID]))
	for client := range h.users[userID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.push(event)
	}
}

// OnlineUsers returns the current presence set.
func (h *Hub) OnlineUsers(ctx context.Context) ([]string, error) {
	return h.presence.List(ctx)
}

func (h *Hub) conversationClients(conversationID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.conversations[conversationID]))
	for client := range h.conversations[conversationID] {
		out = append(out, client)
	}
	return out
}

func (h *Hub) broadcastAll(event *ServerEvent, exclude *Client) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal broadcast event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client == exclude {
			continue
		}
		select {
		case client.Send <- data:
		default:
			// Client buffer full, skip
		}
	}
}
