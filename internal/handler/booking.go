package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aine1100/pixbay-backend/internal/repository"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
	"github.com/aine1100/pixbay-backend/pkg/response"
)

// BookingHandler serves bookings, wallets and transaction history.
type BookingHandler struct {
	bookings *repository.BookingRepository
	wallets  *repository.WalletRepository
	currency string
}

func NewBooking(bookings *repository.BookingRepository, wallets *repository.WalletRepository, currency string) *BookingHandler {
	if currency == "" {
		currency = "RWF"
	}
	return &BookingHandler{bookings: bookings, wallets: wallets, currency: currency}
}

func (h *BookingHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/bookings", h.ListBookings)
	router.Get("/bookings/:id", h.GetBooking)
	router.Get("/wallet", h.GetWallet)
	router.Get("/wallet/transactions", h.ListTransactions)
}

func (h *BookingHandler) ListBookings(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit, offset := pageParams(c, 20)

	bookings, err := h.bookings.ListByUser(c.Context(), userID, limit, offset)
	if err != nil {
		return apperrors.ErrInternal.WithError(err)
	}
	return response.Success(c, bookings)
}

func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	booking, err := h.bookings.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if booking.ClientID != userID && booking.CreatorID != userID {
		return apperrors.ErrForbidden
	}
	return response.Success(c, booking)
}

func (h *BookingHandler) GetWallet(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	wallet, err := h.wallets.GetByUser(c.Context(), userID, h.currency)
	if err != nil {
		return err
	}
	return response.Success(c, wallet)
}

func (h *BookingHandler) ListTransactions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit, offset := pageParams(c, 20)

	transactions, err := h.wallets.ListTransactions(c.Context(), userID, limit, offset)
	if err != nil {
		return apperrors.ErrInternal.WithError(err)
	}
	return response.Success(c, transactions)
}
