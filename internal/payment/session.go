package payment

import (
	"encoding/json"
	"time"

	"github.com/aine1100/pixbay-backend/internal/types"
)

// Step is one discrete state of the payment wizard.
type Step string

const (
	StepSelection Step = "selection"
	StepDetails   Step = "details"
	StepPIN       Step = "pin"
	StepOTP       Step = "otp"
	StepSuccess   Step = "success"
)

type Method string

const (
	MethodCard Method = "card"
	MethodMomo Method = "momo"
)

const (
	pinLength = 4
	otpLength = 5
)

// CardInput holds the display-shaped card fields. They are validated for
// shape only; the gateway owns real verification.
type CardInput struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"` // MM/YY
	CVV    string `json:"cvv"`
}

// MarshalJSON masks the card for display. Session snapshots cross the API
// boundary, so the number keeps only its last four digits and the cvv is
// never echoed back. The raw values stay in memory for the gateway charge,
// like the pin and otp slots.
func (c CardInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Number string `json:"number"`
		Expiry string `json:"expiry"`
	}{
		Number: MaskCardNumber(c.Number),
		Expiry: c.Expiry,
	})
}

type MomoInput struct {
	PhoneNumber string `json:"phone_number"`
	Network     string `json:"network"`
}

// Session is the ephemeral state of one payment attempt. It lives only in
// memory for the lifetime of the wizard and is never persisted.
type Session struct {
	ID      string               `json:"id"`
	Booking types.BookingDetails `json:"booking"`
	UserID  string               `json:"-"`

	Step   Step      `json:"step"`
	Method Method    `json:"method,omitempty"`
	Card   CardInput `json:"card"`
	Momo   MomoInput `json:"momo"`

	PINDigits [pinLength]string `json:"-"`
	OTPDigits [otpLength]string `json:"-"`

	// TransactionRef is set if and only if the gateway signaled that OTP
	// verification is required.
	TransactionRef string `json:"transaction_ref,omitempty"`

	// PaymentLink signals a hosted redirect flow; terminal for the wizard.
	PaymentLink string `json:"payment_link,omitempty"`

	Err        string `json:"error,omitempty"`
	Processing bool   `json:"processing"`

	// history holds visited steps so Back pops exactly one step, even when
	// the pin step was skipped on the momo path.
	history []Step

	createdAt time.Time
	touchedAt time.Time
}

func newSession(id, userID string, booking types.BookingDetails) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		UserID:    userID,
		Booking:   booking,
		Step:      StepSelection,
		history:   make([]Step, 0, 4),
		createdAt: now,
		touchedAt: now,
	}
}

// reset returns every field except identity to its default. Reopening a
// session must not leak state across payment attempts.
func (s *Session) reset() {
	s.Step = StepSelection
	s.Method = ""
	s.Card = CardInput{}
	s.Momo = MomoInput{}
	s.PINDigits = [pinLength]string{}
	s.OTPDigits = [otpLength]string{}
	s.TransactionRef = ""
	s.PaymentLink = ""
	s.Err = ""
	s.Processing = false
	s.history = s.history[:0]
	s.touchedAt = time.Now()
}

// pin returns the joined PIN when all slots are filled, else "".
func (s *Session) pin() string {
	var out string
	for _, d := range s.PINDigits {
		if d == "" {
			return ""
		}
		out += d
	}
	return out
}

// otp returns the joined OTP when all slots are filled, else "".
func (s *Session) otp() string {
	var out string
	for _, d := range s.OTPDigits {
		if d == "" {
			return ""
		}
		out += d
	}
	return out
}

func (s *Session) pushStep(next Step) {
	s.history = append(s.history, s.Step)
	s.Step = next
}

func (s *Session) popStep() bool {
	if len(s.history) == 0 {
		return false
	}
	s.Step = s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	return true
}
