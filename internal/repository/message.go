package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aine1100/pixbay-backend/internal/types"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
)

// ConversationRepository handles conversation and message database
// operations. It backs the chat service's Store interface.
type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreate finds the conversation between two users, creating it on
// first contact. Participants are stored in a canonical order so the
// pair maps to exactly one row.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, userA, userB string) (*types.Conversation, error) {
	if userB < userA {
		userA, userB = userB, userA
	}

	var c types.Conversation
	err := r.db.QueryRow(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, last_message_at, created_at)
		VALUES (gen_random_uuid(), $1, $2, NOW(), NOW())
		ON CONFLICT (participant_a, participant_b) DO UPDATE SET participant_a = EXCLUDED.participant_a
		RETURNING id, participant_a, participant_b, last_message, last_message_at, created_at
	`, userA, userB).Scan(
		&c.ID, &c.ParticipantA, &c.ParticipantB,
		&c.LastMessage, &c.LastMessageAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create conversation: %w", err)
	}

	return &c, nil
}

// ListByUser retrieves a user's conversations, most recent activity
// first, with per-conversation unread counts.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]types.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.participant_a, c.participant_b, c.last_message, c.last_message_at, c.created_at,
		       COUNT(m.id) FILTER (WHERE m.sender_id <> $1 AND m.status <> 'read') AS unread_count
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.participant_a = $1 OR c.participant_b = $1
		GROUP BY c.id
		ORDER BY c.last_message_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]types.Conversation, 0)
	for rows.Next() {
		var c types.Conversation
		if err := rows.Scan(
			&c.ID, &c.ParticipantA, &c.ParticipantB,
			&c.LastMessage, &c.LastMessageAt, &c.CreatedAt, &c.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}

	return conversations, rows.Err()
}

// IsMember reports whether a user participates in a conversation
func (r *ConversationRepository) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversations
			WHERE id = $1 AND (participant_a = $2 OR participant_b = $2)
		)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// History retrieves one page of messages, newest first
func (r *ConversationRepository) History(ctx context.Context, conversationID string, limit, offset int) ([]types.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, sender_id, type, content, COALESCE(file_url, ''), status, sent_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	messages := make([]types.Message, 0, limit)
	for rows.Next() {
		var m types.Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.SenderID, &m.Type,
			&m.Content, &m.FileURL, &m.Status, &m.SentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// SaveMessage inserts a message and bumps the conversation's last
// message, atomically.
func (r *ConversationRepository) SaveMessage(ctx context.Context, msg *types.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, type, content, file_url, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Type, msg.Content, msg.FileURL, msg.Status, msg.SentAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	preview := msg.Content
	if msg.Type == types.MessageTypeFile {
		preview = "Sent a file"
	}
	_, err = tx.Exec(ctx, `
		UPDATE conversations SET last_message = $1, last_message_at = $2 WHERE id = $3
	`, preview, msg.SentAt, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	return tx.Commit(ctx)
}

// MarkRead marks every message from other participants as read
func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages SET status = 'read'
		WHERE conversation_id = $1 AND sender_id <> $2 AND status <> 'read'
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// GetMessage retrieves a single message by ID
func (r *ConversationRepository) GetMessage(ctx context.Context, id string) (*types.Message, error) {
	var m types.Message
	err := r.db.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, type, content, COALESCE(file_url, ''), status, sent_at
		FROM messages WHERE id = $1
	`, id).Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.Type,
		&m.Content, &m.FileURL, &m.Status, &m.SentAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &m, nil
}
