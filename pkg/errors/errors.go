package errors

import (
	"fmt"
	"net/http"
)

// AppError is the error type every handler returns. The fiber error handler
// in pkg/response maps it onto the standard response envelope.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches by code, so copies made with the With* helpers still compare
// equal to their sentinel under errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// New creates a custom AppError.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func (e *AppError) clone() *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		Details:    e.Details,
		HTTPStatus: e.HTTPStatus,
		Err:        e.Err,
	}
}

// WithDetails returns a copy with Details set. The receiver is not modified,
// so the predefined sentinels stay immutable.
func (e *AppError) WithDetails(details any) *AppError {
	c := e.clone()
	c.Details = details
	return c
}

// WithMessage returns a copy with Message replaced.
func (e *AppError) WithMessage(message string) *AppError {
	c := e.clone()
	c.Message = message
	return c
}

// WithError returns a copy wrapping the given error.
func (e *AppError) WithError(err error) *AppError {
	c := e.clone()
	c.Err = err
	return c
}

var (
	// Common
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Bad request",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "Resource already exists",
		HTTPStatus: http.StatusConflict,
	}

	ErrValidation = &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrRateLimited = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests, please try again later",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	// Auth
	ErrInvalidToken = &AppError{
		Code:       "INVALID_TOKEN",
		Message:    "Invalid or malformed token",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpired = &AppError{
		Code:       "TOKEN_EXPIRED",
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	// Payment wizard
	ErrPaymentSessionNotFound = &AppError{
		Code:       "PAYMENT_SESSION_NOT_FOUND",
		Message:    "Payment session not found or expired",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInvalidPaymentMethod = &AppError{
		Code:       "INVALID_PAYMENT_METHOD",
		Message:    "Payment method must be card or momo",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidCardDetails = &AppError{
		Code:       "INVALID_CARD_DETAILS",
		Message:    "Card details failed validation",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidPhone = &AppError{
		Code:       "INVALID_PHONE",
		Message:    "Invalid phone number format",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidPIN = &AppError{
		Code:       "INVALID_PIN",
		Message:    "PIN must be 4 digits",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidOTP = &AppError{
		Code:       "INVALID_OTP",
		Message:    "OTP must be 5 digits",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidTransition = &AppError{
		Code:       "INVALID_TRANSITION",
		Message:    "Action not allowed in the current payment step",
		HTTPStatus: http.StatusConflict,
	}

	ErrPaymentInFlight = &AppError{
		Code:       "PAYMENT_IN_FLIGHT",
		Message:    "A gateway call is already in progress for this session",
		HTTPStatus: http.StatusConflict,
	}

	ErrPaymentFailed = &AppError{
		Code:       "PAYMENT_FAILED",
		Message:    "Payment could not be completed",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrGatewayUnavailable = &AppError{
		Code:       "GATEWAY_UNAVAILABLE",
		Message:    "Payment gateway temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	// Wallet
	ErrWalletNotFound = &AppError{
		Code:       "WALLET_NOT_FOUND",
		Message:    "Wallet not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInsufficientFunds = &AppError{
		Code:       "INSUFFICIENT_FUNDS",
		Message:    "Insufficient balance for this transaction",
		HTTPStatus: http.StatusBadRequest,
	}

	// Chat
	ErrConversationNotFound = &AppError{
		Code:       "CONVERSATION_NOT_FOUND",
		Message:    "Conversation not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUploadInProgress = &AppError{
		Code:       "UPLOAD_IN_PROGRESS",
		Message:    "Another file upload is already in progress",
		HTTPStatus: http.StatusConflict,
	}

	ErrUploadFailed = &AppError{
		Code:       "UPLOAD_FAILED",
		Message:    "File upload failed",
		HTTPStatus: http.StatusBadRequest,
	}

	// Booking
	ErrBookingNotFound = &AppError{
		Code:       "BOOKING_NOT_FOUND",
		Message:    "Booking not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrBookingAlreadyPaid = &AppError{
		Code:       "BOOKING_ALREADY_PAID",
		Message:    "This booking has already been paid",
		HTTPStatus: http.StatusConflict,
	}

	// Users
	ErrUserNotFound = &AppError{
		Code:       "USER_NOT_FOUND",
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}
)
