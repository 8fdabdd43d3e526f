package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
	"github.com/aine1100/pixbay-backend/pkg/gateway"
	"github.com/aine1100/pixbay-backend/pkg/logger"
	"github.com/aine1100/pixbay-backend/pkg/metrics"
)

const (
	msgGatewayUnavailable = "Payment service is unavailable. Please try again."
	msgChargeFailed       = "Payment failed. Please try again."
	msgVerifyFailed       = "Invalid OTP. Please check the code and try again."
)

// GatewayClient is the slice of the gateway the wizard needs. Both the real
// Flutterwave client and the mock satisfy it.
type GatewayClient interface {
	Charge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error)
	ValidateCharge(ctx context.Context, txRef, otp string) (*gateway.ValidateResult, error)
}

type MachineConfig struct {
	// CloseDelay is how long the success step stays visible before the
	// wizard closes itself.
	CloseDelay time.Duration

	// OnSuccess fires once when a payment settles, with a snapshot of the
	// session. Runs on its own goroutine.
	OnSuccess func(Session)

	// OnClose fires when the wizard closes for any reason.
	OnClose func(sessionID string)
}

// Machine drives one payment wizard through
// selection -> details -> [pin] -> [otp] -> success.
// All mutation happens under the mutex; gateway calls run with the lock
// released and their results are discarded if the wizard closed meanwhile.
type Machine struct {
	mu      sync.Mutex
	session *Session
	gw      GatewayClient
	cfg     MachineConfig

	// txRef is our reference for the charge, distinct from the gateway
	// reference that arrives when OTP verification is required.
	txRef string

	closed     bool
	closeTimer *time.Timer
}

func NewMachine(s *Session, gw GatewayClient, cfg MachineConfig) *Machine {
	if cfg.CloseDelay <= 0 {
		cfg.CloseDelay = 2 * time.Second
	}
	return &Machine{
		session: s,
		gw:      gw,
		cfg:     cfg,
		txRef:   fmt.Sprintf("PXB-%s-%d", s.Booking.ID, time.Now().Unix()),
	}
}

// Snapshot returns a copy of the session safe to serialize.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.session
}

// SelectMethod records the chosen payment method on the selection step.
func (m *Machine) SelectMethod(method Method) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.guard(); err != nil {
		return err
	}
	if m.session.Step != StepSelection {
		return apperrors.ErrInvalidTransition
	}
	if method != MethodCard && method != MethodMomo {
		return apperrors.ErrInvalidPaymentMethod
	}

	m.session.Method = method
	m.session.Err = ""
	m.session.touchedAt = time.Now()
	return nil
}

// EnterCard records card details on the details step. The number is
// reformatted for display; shape validation happens on proceed.
func (m *Machine) EnterCard(card CardInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.guard(); err != nil {
		return err
	}
	if m.session.Step != StepDetails || m.session.Method != MethodCard {
		return apperrors.ErrInvalidTransition
	}

	card.Number = FormatCardNumber(card.Number)
	m.session.Card = card
	m.session.Err = ""
	m.session.touchedAt = time.Now()
	return nil
}

// EnterMomo records mobile-money details on the details step.
func (m *Machine) EnterMomo(momo MomoInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.guard(); err != nil {
		return err
	}
	if m.session.Step != StepDetails || m.session.Method != MethodMomo {
		return apperrors.ErrInvalidTransition
	}

	momo.PhoneNumber = digitsOnly(momo.PhoneNumber)
	momo.Network = strings.ToUpper(momo.Network)
	m.session.Momo = momo
	m.session.Err = ""
	m.session.touchedAt = time.Now()
	return nil
}

// EnterPIN fills the pin slots with the digits typed so far, up to 4.
func (m *Machine) EnterPIN(pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.guard(); err != nil {
		return err
	}
	if m.session.Step != StepPIN {
		return apperrors.ErrInvalidTransition
	}
	if len(pin) > pinLength || (pin != "" && !isDigits(pin)) {
		return apperrors.ErrInvalidPIN
	}

	m.session.PINDigits = [pinLength]string{}
	for i, r := range pin {
		m.session.PINDigits[i] = string(r)
	}
	m.session.Err = ""
	m.session.touchedAt = time.Now()
	return nil
}

// EnterOTP fills the otp slots with the digits typed so far, up to 5.
func (m *Machine) EnterOTP(otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.guard(); err != nil {
		return err
	}
	if m.session.Step != StepOTP {
		return apperrors.ErrInvalidTransition
	}
	if len(otp) > otpLength || (otp != "" && !isDigits(otp)) {
		return apperrors.ErrInvalidOTP
	}

	m.session.OTPDigits = [otpLength]string{}
	for i, r := range otp {
		m.session.OTPDigits[i] = string(r)
	}
	m.session.Err = ""
	m.session.touchedAt = time.Now()
	return nil
}

// Proceed advances the wizard. On the details step it either moves to pin
// (card) or initiates the charge (momo). On pin it initiates with the PIN
// attached, and on otp it verifies against the gateway reference.
func (m *Machine) Proceed(ctx context.Context) error {
	m.mu.Lock()

	if err := m.guard(); err != nil {
		m.mu.Unlock()
		return err
	}
	if !CanProceed(m.session) {
		err := m.validationErr()
		m.mu.Unlock()
		return err
	}

	s := m.session
	s.Err = ""
	s.touchedAt = time.Now()

	switch s.Step {
	case StepSelection:
		m.advance(StepDetails)
		m.mu.Unlock()
		return nil

	case StepDetails:
		if s.Method == MethodCard {
			// Card always collects a PIN before the first gateway call.
			m.advance(StepPIN)
			m.mu.Unlock()
			return nil
		}
		req := m.chargeRequest("")
		return m.runCharge(ctx, req)

	case StepPIN:
		req := m.chargeRequest(s.pin())
		return m.runCharge(ctx, req)

	case StepOTP:
		return m.runVerify(ctx, s.TransactionRef, s.otp())

	default:
		m.mu.Unlock()
		return apperrors.ErrInvalidTransition
	}
}

// Back pops exactly one visited step. Entered secrets for the step being
// left are cleared, and the gateway reference is dropped when leaving otp
// so it only ever exists while verification is pending.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.guard(); err != nil {
		return err
	}
	if m.session.Step == StepSuccess {
		return apperrors.ErrInvalidTransition
	}

	switch m.session.Step {
	case StepPIN:
		m.session.PINDigits = [pinLength]string{}
	case StepOTP:
		m.session.OTPDigits = [otpLength]string{}
		m.session.TransactionRef = ""
	}

	if !m.session.popStep() {
		return apperrors.ErrInvalidTransition
	}
	m.session.Err = ""
	m.session.touchedAt = time.Now()
	return nil
}

// Close tears the wizard down. Idempotent; any in-flight gateway result
// arriving after Close is discarded.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.closeTimer != nil {
		m.closeTimer.Stop()
	}
	m.session.PINDigits = [pinLength]string{}
	m.session.OTPDigits = [otpLength]string{}
	sessionID := m.session.ID
	m.mu.Unlock()

	if m.cfg.OnClose != nil {
		m.cfg.OnClose(sessionID)
	}
}

// expired reports whether the wizard has been idle longer than ttl.
func (m *Machine) expired(ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.session.touchedAt) > ttl
}

func (m *Machine) guard() error {
	if m.closed {
		return apperrors.ErrPaymentSessionNotFound
	}
	if m.session.Processing {
		return apperrors.ErrPaymentInFlight
	}
	return nil
}

func (m *Machine) validationErr() error {
	switch m.session.Step {
	case StepSelection:
		return apperrors.ErrInvalidPaymentMethod
	case StepDetails:
		if m.session.Method == MethodCard {
			return apperrors.ErrInvalidCardDetails
		}
		return apperrors.ErrInvalidPhone
	case StepPIN:
		return apperrors.ErrInvalidPIN
	case StepOTP:
		return apperrors.ErrInvalidOTP
	default:
		return apperrors.ErrInvalidTransition
	}
}

func (m *Machine) advance(next Step) {
	metrics.RecordPaymentStep("payment", string(m.session.Step), string(next))
	m.session.pushStep(next)
}

func (m *Machine) chargeRequest(pin string) *gateway.ChargeRequest {
	s := m.session
	req := &gateway.ChargeRequest{
		TxRef:    m.txRef,
		Amount:   s.Booking.Amount,
		Currency: s.Booking.Currency,
		Method:   string(s.Method),
		PIN:      pin,
	}
	switch s.Method {
	case MethodCard:
		req.Card = &gateway.CardDetails{
			Number: s.Card.Number,
			Expiry: s.Card.Expiry,
			CVV:    s.Card.CVV,
		}
	case MethodMomo:
		req.Momo = &gateway.MomoDetails{
			PhoneNumber: s.Momo.PhoneNumber,
			Network:     s.Momo.Network,
		}
	}
	return req
}

// runCharge is entered with the lock held and releases it around the
// gateway call. Only one call can be in flight per session.
func (m *Machine) runCharge(ctx context.Context, req *gateway.ChargeRequest) error {
	m.session.Processing = true
	m.mu.Unlock()

	result, err := m.gw.Charge(ctx, req)

	m.mu.Lock()
	m.session.Processing = false
	if m.closed {
		m.mu.Unlock()
		return nil
	}

	if err != nil {
		logger.Error().Err(err).Str("session_id", m.session.ID).Msg("charge initiation failed")
		metrics.RecordPaymentTransaction("payment", string(m.session.Method), "error")
		m.session.Err = msgGatewayUnavailable
		m.mu.Unlock()
		return nil
	}

	m.applyCharge(result)
	return nil
}

// applyCharge folds the gateway outcome into the wizard. Called with the
// lock held; unlocks before returning.
func (m *Machine) applyCharge(result *gateway.ChargeResult) {
	s := m.session

	switch {
	case !result.Success:
		metrics.RecordPaymentTransaction("payment", string(s.Method), "failed")
		s.Err = result.Message
		if s.Err == "" {
			s.Err = msgChargeFailed
		}
		m.mu.Unlock()

	case result.RequiresOTP:
		if result.TxRef == "" {
			s.Err = msgGatewayUnavailable
			m.mu.Unlock()
			return
		}
		s.TransactionRef = result.TxRef
		s.OTPDigits = [otpLength]string{}
		m.advance(StepOTP)
		m.mu.Unlock()

	case result.RequiresPIN:
		if s.Step != StepPIN {
			m.advance(StepPIN)
		}
		s.PINDigits = [pinLength]string{}
		m.mu.Unlock()

	case result.PaymentLink != "":
		// Hosted redirect. The wizard is done; settlement arrives on the
		// gateway webhook.
		s.PaymentLink = result.PaymentLink
		m.mu.Unlock()

	default:
		m.settle()
	}
}

func (m *Machine) runVerify(ctx context.Context, txRef, otp string) error {
	m.session.Processing = true
	m.mu.Unlock()

	result, err := m.gw.ValidateCharge(ctx, txRef, otp)

	m.mu.Lock()
	m.session.Processing = false
	if m.closed {
		m.mu.Unlock()
		return nil
	}

	if err != nil {
		logger.Error().Err(err).Str("session_id", m.session.ID).Msg("otp verification failed")
		metrics.RecordPaymentTransaction("payment", string(m.session.Method), "error")
		m.session.Err = msgGatewayUnavailable
		m.mu.Unlock()
		return nil
	}

	if !result.Success {
		metrics.RecordPaymentTransaction("payment", string(m.session.Method), "failed")
		m.session.Err = result.Message
		if m.session.Err == "" {
			m.session.Err = msgVerifyFailed
		}
		m.session.OTPDigits = [otpLength]string{}
		m.mu.Unlock()
		return nil
	}

	m.settle()
	return nil
}

// settle moves the wizard to success, schedules the auto-close, and fires
// OnSuccess with a snapshot. Called with the lock held; unlocks.
func (m *Machine) settle() {
	s := m.session
	metrics.RecordPaymentTransaction("payment", string(s.Method), "success")
	m.advance(StepSuccess)
	m.closeTimer = time.AfterFunc(m.cfg.CloseDelay, m.Close)
	snapshot := *s
	m.mu.Unlock()

	if m.cfg.OnSuccess != nil {
		go m.cfg.OnSuccess(snapshot)
	}
}
