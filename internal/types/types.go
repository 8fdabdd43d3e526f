package types

import "time"

// BookingDetails is the read-only identity a payment session is opened for.
// The wizard never mutates it.
type BookingDetails struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Type     string  `json:"type"` // e.g. "Booking Payment", "Job Payment"
}

type User struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"` // client, creator
	CreatedAt time.Time `json:"created_at"`
}

type Booking struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	CreatorID     string     `json:"creator_id"`
	Title         string     `json:"title"`
	EventDate     *time.Time `json:"event_date,omitempty"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`         // pending, confirmed, completed, cancelled
	PaymentStatus string     `json:"payment_status"` // unpaid, pending, paid
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Conversation struct {
	ID            string    `json:"id"`
	ParticipantA  string    `json:"participant_a"`
	ParticipantB  string    `json:"participant_b"`
	LastMessage   *string   `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Message is one chat message record. Status follows sent -> delivered -> read.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Type           string    `json:"type"` // text, file
	Content        string    `json:"content"`
	FileURL        string    `json:"file_url,omitempty"`
	Status         string    `json:"status"`
	SentAt         time.Time `json:"sent_at"`
}

const (
	MessageTypeText = "text"
	MessageTypeFile = "file"

	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

type Wallet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Currency  string    `json:"currency"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Transaction struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	WalletID    string     `json:"wallet_id"`
	BookingID   *string    `json:"booking_id,omitempty"`
	Type        string     `json:"type"` // payment, payout, refund
	Status      string     `json:"status"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Provider    string     `json:"provider"`
	ProviderRef *string    `json:"provider_ref,omitempty"`
	Description *string    `json:"description,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
