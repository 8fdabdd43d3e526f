package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aine1100/pixbay-backend/internal/types"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
	"github.com/aine1100/pixbay-backend/pkg/logger"
)

// Session is the live view of one conversation for one connected user.
// It owns the oldest-first message list, the seen-ID set that dedupes
// redelivered messages, the typing flags of the other participants, and
// the upload guard.
type Session struct {
	ConversationID string
	UserID         string

	typingTimeout time.Duration

	// onTypingExpired fires when a peer's typing flag ages out without an
	// explicit stop signal.
	onTypingExpired func(conversationID, userID string)

	mu       sync.Mutex
	messages []types.Message
	seen     map[string]bool
	typing   map[string]*time.Timer
	upload   bool
	closed   bool
}

type SessionConfig struct {
	TypingTimeout   time.Duration
	OnTypingExpired func(conversationID, userID string)
}

func NewSession(conversationID, userID string, cfg SessionConfig) *Session {
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = 5 * time.Second
	}
	return &Session{
		ConversationID:  conversationID,
		UserID:          userID,
		typingTimeout:   cfg.TypingTimeout,
		onTypingExpired: cfg.OnTypingExpired,
		messages:        make([]types.Message, 0, 32),
		seen:            make(map[string]bool),
		typing:          make(map[string]*time.Timer),
	}
}

// Load replaces the message list with fetched history. The fetch returns
// newest-first pages, the session stores oldest-first. A failed fetch
// keeps whatever was loaded before.
func (s *Session) Load(ctx context.Context, fetch func(ctx context.Context) ([]types.Message, error)) error {
	history, err := fetch(ctx)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("conversation_id", s.ConversationID).
			Msg("history load failed, keeping previous messages")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = s.messages[:0]
	s.seen = make(map[string]bool, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		if s.seen[history[i].ID] {
			continue
		}
		s.seen[history[i].ID] = true
		s.messages = append(s.messages, history[i])
	}
	return nil
}

// OnInboundMessage appends a delivered message. Messages for other
// conversations and messages already seen are dropped. Reports whether
// the message was actually appended.
func (s *Session) OnInboundMessage(msg types.Message) bool {
	if msg.ConversationID != s.ConversationID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[msg.ID] {
		return false
	}
	s.seen[msg.ID] = true
	s.messages = append(s.messages, msg)
	return true
}

// Messages returns a copy of the oldest-first list.
func (s *Session) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetTyping raises the typing flag for a peer. The local user's own
// signals are ignored. The flag clears itself after the typing timeout
// unless renewed. Reports whether the flag changed.
func (s *Session) SetTyping(userID string) bool {
	if userID == s.UserID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	if timer, ok := s.typing[userID]; ok {
		timer.Reset(s.typingTimeout)
		return false
	}

	s.typing[userID] = time.AfterFunc(s.typingTimeout, func() {
		s.expireTyping(userID)
	})
	return true
}

// ClearTyping lowers the typing flag for a peer. Reports whether the
// flag was set.
func (s *Session) ClearTyping(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.typing[userID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.typing, userID)
	return true
}

func (s *Session) expireTyping(userID string) {
	s.mu.Lock()
	_, ok := s.typing[userID]
	if ok {
		delete(s.typing, userID)
	}
	closed := s.closed
	s.mu.Unlock()

	if ok && !closed && s.onTypingExpired != nil {
		s.onTypingExpired(s.ConversationID, userID)
	}
}

// TypingUsers returns the peers currently marked as typing.
func (s *Session) TypingUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.typing))
	for id := range s.typing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// BeginUpload reserves the single upload slot for this session.
func (s *Session) BeginUpload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upload {
		return apperrors.ErrUploadInProgress
	}
	s.upload = true
	return nil
}

// EndUpload releases the upload slot.
func (s *Session) EndUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload = false
}

// Close stops all typing timers. The session must not be used after.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.typing {
		timer.Stop()
		delete(s.typing, id)
	}
}
