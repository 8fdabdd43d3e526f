package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aine1100/pixbay-backend/internal/chat"
	"github.com/aine1100/pixbay-backend/internal/payment"
	"github.com/aine1100/pixbay-backend/internal/types"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
	"github.com/aine1100/pixbay-backend/pkg/events"
	"github.com/aine1100/pixbay-backend/pkg/gateway"
	"github.com/aine1100/pixbay-backend/pkg/logger"
	"github.com/aine1100/pixbay-backend/pkg/response"
)

type PaymentConfig struct {
	SessionTTL        time.Duration
	SuccessCloseDelay time.Duration
	WebhookHash       string
}

// BookingStore is the slice of the booking repository the payment flow
// needs. MarkPaid must be atomic: it reports whether this call performed
// the unpaid-to-paid transition.
type BookingStore interface {
	GetByID(ctx context.Context, id string) (*types.Booking, error)
	MarkPaid(ctx context.Context, id string) (bool, error)
}

// WalletStore credits creator wallets for settled payments.
type WalletStore interface {
	CreditForPayment(ctx context.Context, userID, bookingID, providerRef string, amount float64, currency string) (*types.Transaction, error)
}

// PaymentHandler drives payment wizard sessions over HTTP and settles
// completed charges, whether they finish in the wizard or arrive on the
// gateway webhook.
type PaymentHandler struct {
	manager   *payment.Manager
	bookings  BookingStore
	wallets   WalletStore
	chat      *chat.Service
	publisher events.Publisher
	cfg       PaymentConfig
}

func NewPayment(
	gw payment.GatewayClient,
	bookings BookingStore,
	wallets WalletStore,
	chatSvc *chat.Service,
	publisher events.Publisher,
	cfg PaymentConfig,
) *PaymentHandler {
	h := &PaymentHandler{
		bookings:  bookings,
		wallets:   wallets,
		chat:      chatSvc,
		publisher: publisher,
		cfg:       cfg,
	}
	h.manager = payment.NewManager(gw, payment.ManagerConfig{
		SessionTTL: cfg.SessionTTL,
		CloseDelay: cfg.SuccessCloseDelay,
		OnSuccess:  h.onWizardSuccess,
	})
	return h
}

// Stop shuts down the session manager.
func (h *PaymentHandler) Stop() {
	h.manager.Stop()
}

// RegisterRoutes mounts the payment endpoints. The webhook is mounted
// separately because it must stay outside auth.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	sessions := router.Group("/payments/sessions")
	sessions.Post("/", h.OpenSession)
	sessions.Get("/:id", h.GetSession)
	sessions.Post("/:id/method", h.SelectMethod)
	sessions.Post("/:id/details", h.EnterDetails)
	sessions.Post("/:id/pin", h.EnterPIN)
	sessions.Post("/:id/otp", h.EnterOTP)
	sessions.Post("/:id/proceed", h.Proceed)
	sessions.Post("/:id/back", h.Back)
	sessions.Delete("/:id", h.CloseSession)
}

type openSessionRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *PaymentHandler) OpenSession(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req openSessionRequest
	if err := c.BodyParser(&req); err != nil || req.BookingID == "" {
		return apperrors.ErrValidation.WithDetails("booking_id is required")
	}

	booking, err := h.bookings.GetByID(c.Context(), req.BookingID)
	if err != nil {
		return err
	}
	if booking.ClientID != userID {
		return apperrors.ErrForbidden
	}
	if booking.PaymentStatus == "paid" {
		return apperrors.ErrBookingAlreadyPaid
	}

	machine := h.manager.Open(userID, types.BookingDetails{
		ID:       booking.ID,
		Amount:   booking.Amount,
		Currency: booking.Currency,
		Type:     "Booking Payment",
	})
	return response.Created(c, machine.Snapshot())
}

func (h *PaymentHandler) GetSession(c *fiber.Ctx) error {
	machine, err := h.machine(c)
	if err != nil {
		return err
	}
	return response.Success(c, machine.Snapshot())
}

type selectMethodRequest struct {
	Method string `json:"method"`
}

func (h *PaymentHandler) SelectMethod(c *fiber.Ctx) error {
	machine, err := h.machine(c)
	if err != nil {
		return err
	}

	var req selectMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrValidation.WithDetails("Invalid request body")
	}
	if err := machine.SelectMethod(payment.Method(req.Method)); err != nil {
		return err
	}
	return response.Success(c, machine.Snapshot())
}

type detailsRequest struct {
	Card *payment.CardInput `json:"card,omitempty"`
	Momo *payment.MomoInput `json:"momo,omitempty"`
}

func (h *PaymentHandler) EnterDetails(c *fiber.Ctx) error {
	machine, err := h.machine(c)
	if err != nil {
		return err
	}

	var req detailsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrValidation.WithDetails("Invalid request body")
	}

	switch {
	case req.Card != nil:
		err = machine.EnterCard(*req.Card)
	case req.Momo != nil:
		err = machine.EnterMomo(*req.Momo)
	default:
		return apperrors.ErrValidation.WithDetails("card or momo details are required")
	}
	if err != nil {
		return err
	}
	return response.Success(c, machine.Snapshot())
}

type pinRequest struct {
	PIN string `json:"pin"`
}

func (h *PaymentHandler) EnterPIN(c *fiber.Ctx) error {
	machine, err := h.machine(c)
	if err != nil {
		return err
	}

	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrValidation.WithDetails("Invalid request body")
	}
	if err := machine.EnterPIN(req.PIN); err != nil {
		return err
	}
	return response.Success(c, machine.Snapshot())
}

type otpRequest struct {
	OTP string `json:"otp"`
}

func (h *PaymentHandler) EnterOTP(c *fiber.Ctx) error {
	machine, err := h.machine(c)
	if err != nil {
		return err
	}

	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrValidation.WithDetails("Invalid request body")
	}
	if err := machine.EnterOTP(req.OTP); err != nil {
		return err
	}
	return response.Success(c, machine.Snapshot())
}

func (h *PaymentHandler) Proceed(c *fiber.Ctx) error {
	machine, err := h.machine(c)
	if err != nil {
		return err
	}
	if err := machine.Proceed(c.Context()); err != nil {
		return err
	}
	return response.Success(c, machine.Snapshot())
}

func (h *PaymentHandler) Back(c *fiber.Ctx) error {
	machine, err := h.machine(c)
	if err != nil {
		return err
	}
	if err := machine.Back(); err != nil {
		return err
	}
	return response.Success(c, machine.Snapshot())
}

func (h *PaymentHandler) CloseSession(c *fiber.Ctx) error {
	machine, err := h.machine(c)
	if err != nil {
		return err
	}
	machine.Close()
	return response.NoContent(c)
}

// Webhook receives gateway settlement callbacks. Mounted outside auth;
// the signature header is the only credential.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	event, err := gateway.ParseWebhook(c.Body(), c.Get("verif-hash"), h.cfg.WebhookHash)
	if err != nil {
		logger.Warn().Err(err).Msg("rejected gateway webhook")
		return apperrors.ErrUnauthorized
	}

	if !event.Completed() {
		logger.Info().
			Str("tx_ref", event.Data.TxRef).
			Str("status", event.Data.Status).
			Msg("ignoring non-completed webhook event")
		return response.NoContent(c)
	}

	bookingID, ok := bookingIDFromTxRef(event.Data.TxRef)
	if !ok {
		logger.Warn().Str("tx_ref", event.Data.TxRef).Msg("webhook with unrecognized tx_ref")
		return response.NoContent(c)
	}

	if err := h.settle(c.Context(), bookingID, event.Data.FlwRef); err != nil {
		logger.Error().Err(err).Str("booking_id", bookingID).Msg("webhook settlement failed")
		return apperrors.ErrInternal
	}
	return response.NoContent(c)
}

// onWizardSuccess runs when a wizard reaches the success step.
func (h *PaymentHandler) onWizardSuccess(s payment.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.settle(ctx, s.Booking.ID, s.TransactionRef); err != nil {
		logger.Error().Err(err).Str("booking_id", s.Booking.ID).Msg("wizard settlement failed")
	}
}

// settle marks the booking paid, credits the creator's wallet, publishes
// the completion event and notifies both parties' sockets. The wizard
// success callback and the gateway webhook can both land for the same
// charge; the atomic MarkPaid picks the winner and the loser returns
// without crediting.
func (h *PaymentHandler) settle(ctx context.Context, bookingID, providerRef string) error {
	booking, err := h.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	flipped, err := h.bookings.MarkPaid(ctx, bookingID)
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}

	record, err := h.wallets.CreditForPayment(ctx, booking.CreatorID, bookingID, providerRef, booking.Amount, booking.Currency)
	if err != nil {
		return err
	}

	if h.publisher != nil {
		h.publisher.Publish(ctx, events.TopicPaymentCompleted, events.NewEvent(
			events.EventTypePaymentCompleted,
			"payment",
			events.PaymentCompletedPayload{
				BookingID: bookingID,
				UserID:    booking.ClientID,
				Amount:    booking.Amount,
				Currency:  booking.Currency,
				TxRef:     providerRef,
				Status:    "completed",
			},
		))
	}

	if h.chat != nil {
		notice := chat.PaymentCompletedPayload{
			BookingID: bookingID,
			Amount:    booking.Amount,
			Currency:  booking.Currency,
			TxRef:     providerRef,
		}
		h.chat.NotifyPaymentCompleted(booking.ClientID, notice)
		h.chat.NotifyPaymentCompleted(booking.CreatorID, notice)
	}

	logger.Info().
		Str("booking_id", bookingID).
		Str("transaction_id", record.ID).
		Float64("amount", booking.Amount).
		Msg("payment settled")
	return nil
}

func (h *PaymentHandler) machine(c *fiber.Ctx) (*payment.Machine, error) {
	userID := c.Locals("user_id").(string)
	return h.manager.Get(c.Params("id"), userID)
}

// bookingIDFromTxRef recovers the booking ID from a PXB-<id>-<ts>
// charge reference.
func bookingIDFromTxRef(txRef string) (string, bool) {
	rest, ok := strings.CutPrefix(txRef, "PXB-")
	if !ok {
		return "", false
	}
	i := strings.LastIndex(rest, "-")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}
