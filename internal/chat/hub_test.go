package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aine1100/pixbay-backend/internal/types"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
	"github.com/aine1100/pixbay-backend/pkg/metrics"
)

// fakeStore is an in-memory chat store. History returns newest-first,
// like the real repository.
type fakeStore struct {
	mu       sync.Mutex
	members  map[string]map[string]bool
	messages map[string][]types.Message
	reads    []string
	histErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:  make(map[string]map[string]bool),
		messages: make(map[string][]types.Message),
	}
}

func (f *fakeStore) addMember(conversationID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[conversationID] == nil {
		f.members[conversationID] = make(map[string]bool)
	}
	f.members[conversationID][userID] = true
}

func (f *fakeStore) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[conversationID][userID], nil
}

func (f *fakeStore) History(ctx context.Context, conversationID string, limit, offset int) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return nil, f.histErr
	}
	stored := f.messages[conversationID]
	out := make([]types.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) SaveMessage(ctx context.Context, msg *types.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], *msg)
	return nil
}

func (f *fakeStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, conversationID+":"+userID)
	return nil
}

func readEvent(t *testing.T, c *Client) *ServerEvent {
	t.Helper()
	select {
	case data := <-c.Send:
		var event ServerEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return &event
	case <-time.After(time.Second):
		t.Fatal("no event arrived")
		return nil
	}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestChat(t *testing.T) (*Hub, *Service, *fakeStore) {
	t.Helper()
	hub := NewHub(NewMemoryPresence())
	store := newFakeStore()
	svc := NewService(store, nil, hub, ServiceConfig{TypingTimeout: time.Hour, HistoryPage: 50})
	t.Cleanup(hub.Stop)
	return hub, svc, store
}

func connect(hub *Hub, svc *Service, id, userID string) *Client {
	client := NewClient(id, userID, nil, hub, svc)
	hub.addClient(client)
	return client
}

func TestPresenceTransitions(t *testing.T) {
	hub, svc, _ := newTestChat(t)

	watcher := connect(hub, svc, "c0", "watcher")

	// First connection flips the user online exactly once.
	a1 := connect(hub, svc, "c1", "user-a")
	if event := readEvent(t, watcher); event.Event != EventUserOnline {
		t.Fatalf("event = %s, want user_online", event.Event)
	}

	a2 := connect(hub, svc, "c2", "user-a")
	expectNoEvent(t, watcher)

	online, err := hub.OnlineUsers(context.Background())
	if err != nil {
		t.Fatalf("OnlineUsers() error = %v", err)
	}
	if len(online) != 2 {
		t.Fatalf("online = %v, want watcher and user-a", online)
	}

	// Dropping one of two connections keeps the user online.
	hub.removeClient(a1)
	expectNoEvent(t, watcher)

	hub.removeClient(a2)
	if event := readEvent(t, watcher); event.Event != EventUserOffline {
		t.Fatalf("event = %s, want user_offline", event.Event)
	}

	online, _ = hub.OnlineUsers(context.Background())
	if len(online) != 1 || online[0] != "watcher" {
		t.Errorf("online = %v, want [watcher]", online)
	}
}

func TestSendMessageFansOutOnce(t *testing.T) {
	hub, svc, store := newTestChat(t)
	store.addMember("conv-1", "user-a")
	store.addMember("conv-1", "user-b")

	sender := connect(hub, svc, "c1", "user-a")
	receiver := connect(hub, svc, "c2", "user-b")
	ctx := context.Background()

	if err := svc.Join(ctx, sender, "conv-1"); err != nil {
		t.Fatalf("Join(sender) error = %v", err)
	}
	if err := svc.Join(ctx, receiver, "conv-1"); err != nil {
		t.Fatalf("Join(receiver) error = %v", err)
	}

	msg, err := svc.SendMessage(ctx, "user-a", &SendMessagePayload{
		ConversationID: "conv-1",
		Type:           types.MessageTypeText,
		Content:        "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	// No local echo: the sender's copy arrives as receive_message too.
	for _, client := range []*Client{sender, receiver} {
		event := readEvent(t, client)
		if event.Event != EventReceiveMessage {
			t.Fatalf("event = %s, want receive_message", event.Event)
		}
	}

	// Redelivery reaches no socket a second time.
	hub.DeliverMessage(*msg)
	expectNoEvent(t, sender)
	expectNoEvent(t, receiver)

	session, ok := hub.Session("user-b", "conv-1")
	if !ok {
		t.Fatal("receiver session not found")
	}
	if msgs := session.Messages(); len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Errorf("receiver messages = %v, want exactly the sent message", msgs)
	}
}

func TestSendMessageRequiresMembership(t *testing.T) {
	_, svc, store := newTestChat(t)
	store.addMember("conv-1", "user-a")

	_, err := svc.SendMessage(context.Background(), "intruder", &SendMessagePayload{
		ConversationID: "conv-1",
		Content:        "hi",
	})
	if !errors.Is(err, apperrors.ErrConversationNotFound) {
		t.Errorf("SendMessage() = %v, want conversation not found", err)
	}
}

func TestJoinLoadsHistory(t *testing.T) {
	hub, svc, store := newTestChat(t)
	store.addMember("conv-1", "user-a")
	store.addMember("conv-1", "user-b")
	ctx := context.Background()

	for i, content := range []string{"first", "second", "third"} {
		store.SaveMessage(ctx, &types.Message{
			ID:             []string{"m1", "m2", "m3"}[i],
			ConversationID: "conv-1",
			SenderID:       "user-b",
			Type:           types.MessageTypeText,
			Content:        content,
		})
	}

	client := connect(hub, svc, "c1", "user-a")
	if err := svc.Join(ctx, client, "conv-1"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	session, ok := hub.Session("user-a", "conv-1")
	if !ok {
		t.Fatal("session not found after join")
	}
	msgs := session.Messages()
	if len(msgs) != 3 || msgs[0].ID != "m1" || msgs[2].ID != "m3" {
		t.Errorf("history = %v, want m1..m3 oldest-first", msgs)
	}

	// A message already in history must not be delivered again.
	hub.DeliverMessage(msgs[0])
	expectNoEvent(t, client)
}

func TestTypingBroadcast(t *testing.T) {
	hub, svc, store := newTestChat(t)
	store.addMember("conv-1", "user-a")
	store.addMember("conv-1", "user-b")
	ctx := context.Background()

	sender := connect(hub, svc, "c1", "user-a")
	receiver := connect(hub, svc, "c2", "user-b")
	svc.Join(ctx, sender, "conv-1")
	svc.Join(ctx, receiver, "conv-1")

	hub.BroadcastTyping("conv-1", "user-a")
	event := readEvent(t, receiver)
	if event.Event != EventUserTyping {
		t.Fatalf("event = %s, want user_typing", event.Event)
	}
	expectNoEvent(t, sender)

	// Renewals are silent.
	hub.BroadcastTyping("conv-1", "user-a")
	expectNoEvent(t, receiver)

	hub.BroadcastStopTyping("conv-1", "user-a")
	if event := readEvent(t, receiver); event.Event != EventUserStopTyping {
		t.Fatalf("event = %s, want user_stop_typing", event.Event)
	}
}

func TestUploadGuardThroughService(t *testing.T) {
	hub, svc, store := newTestChat(t)
	store.addMember("conv-1", "user-a")
	ctx := context.Background()

	client := connect(hub, svc, "c1", "user-a")
	if err := svc.Join(ctx, client, "conv-1"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	session, _ := hub.Session("user-a", "conv-1")
	if err := session.BeginUpload(); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}

	_, err := svc.Upload(ctx, "user-a", "conv-1", func() (string, error) {
		return "/uploads/a.png", nil
	})
	if !errors.Is(err, apperrors.ErrUploadInProgress) {
		t.Fatalf("Upload() during another upload = %v, want upload in progress", err)
	}

	session.EndUpload()
	msg, err := svc.Upload(ctx, "user-a", "conv-1", func() (string, error) {
		return "/uploads/a.png", nil
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if msg.Type != types.MessageTypeFile || msg.FileURL != "/uploads/a.png" {
		t.Errorf("message = %+v, want file message", msg)
	}

	if event := readEvent(t, client); event.Event != EventReceiveMessage {
		t.Errorf("event = %s, want receive_message", event.Event)
	}
}

func TestPaymentCompletedNotification(t *testing.T) {
	hub, svc, _ := newTestChat(t)
	client := connect(hub, svc, "c1", "user-a")
	stranger := connect(hub, svc, "c2", "user-b")

	// Drain the user_online broadcast user-a saw for user-b.
	readEvent(t, client)

	svc.NotifyPaymentCompleted("user-a", PaymentCompletedPayload{
		BookingID: "bk-1",
		Amount:    5000,
		Currency:  "RWF",
		TxRef:     "PXB-1",
	})

	if event := readEvent(t, client); event.Event != EventPaymentCompleted {
		t.Fatalf("event = %s, want payment_completed", event.Event)
	}
	expectNoEvent(t, stranger)
}

// outboundMessageCount reads the outbound chat message counter for one
// message type from the shared metrics registry.
func outboundMessageCount(t *testing.T, msgType string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "chat_messages_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var direction, typ string
			for _, label := range m.GetLabel() {
				switch label.GetName() {
				case "direction":
					direction = label.GetValue()
				case "type":
					typ = label.GetValue()
				}
			}
			if direction == "outbound" && typ == msgType {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestOutboundMetricCountsDeliveries(t *testing.T) {
	hub, svc, store := newTestChat(t)
	store.addMember("conv-1", "user-a")
	store.addMember("conv-1", "user-b")

	sender := connect(hub, svc, "c1", "user-a")
	receiver := connect(hub, svc, "c2", "user-b")
	ctx := context.Background()

	if err := svc.Join(ctx, sender, "conv-1"); err != nil {
		t.Fatalf("Join(sender) error = %v", err)
	}
	if err := svc.Join(ctx, receiver, "conv-1"); err != nil {
		t.Fatalf("Join(receiver) error = %v", err)
	}

	before := outboundMessageCount(t, types.MessageTypeText)
	msg, err := svc.SendMessage(ctx, "user-a", &SendMessagePayload{
		ConversationID: "conv-1",
		Type:           types.MessageTypeText,
		Content:        "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got := outboundMessageCount(t, types.MessageTypeText) - before; got != 2 {
		t.Errorf("outbound count rose by %v, want 2 (one per open socket)", got)
	}

	// Redelivery is deduped per session and pushes nothing.
	hub.DeliverMessage(*msg)
	if got := outboundMessageCount(t, types.MessageTypeText) - before; got != 2 {
		t.Errorf("outbound count rose by %v after redelivery, want 2", got)
	}

	// Nobody has this conversation open, so nothing is delivered.
	stray := *msg
	stray.ID = "msg-stray"
	stray.ConversationID = "conv-ghost"
	hub.DeliverMessage(stray)
	if got := outboundMessageCount(t, types.MessageTypeText) - before; got != 2 {
		t.Errorf("outbound count rose by %v for an unopened conversation, want 2", got)
	}
}
