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

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetByID retrieves a booking by its ID
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*types.Booking, error) {
	var b types.Booking
	err := r.db.QueryRow(ctx, `
		SELECT id, client_id, creator_id, title, event_date, amount, currency,
		       status, payment_status, created_at, updated_at
		FROM bookings WHERE id = $1
	`, id).Scan(
		&b.ID, &b.ClientID, &b.CreatorID, &b.Title, &b.EventDate,
		&b.Amount, &b.Currency, &b.Status, &b.PaymentStatus,
		&b.CreatedAt, &b.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &b, nil
}

// ListByUser retrieves bookings where the user is client or creator
func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]types.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, client_id, creator_id, title, event_date, amount, currency,
		       status, payment_status, created_at, updated_at
		FROM bookings
		WHERE client_id = $1 OR creator_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]types.Booking, 0)
	for rows.Next() {
		var b types.Booking
		if err := rows.Scan(
			&b.ID, &b.ClientID, &b.CreatorID, &b.Title, &b.EventDate,
			&b.Amount, &b.Currency, &b.Status, &b.PaymentStatus,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// MarkPaid flips a booking's payment status to paid unless it already is.
// The conditional update makes the transition atomic, so when the wizard
// success callback and the gateway webhook race for the same booking,
// exactly one caller sees true.
func (r *BookingRepository) MarkPaid(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE bookings SET payment_status = 'paid', updated_at = NOW()
		WHERE id = $1 AND payment_status <> 'paid'
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking paid: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
