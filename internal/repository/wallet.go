package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aine1100/pixbay-backend/internal/types"
	apperrors "github.com/aine1100/pixbay-backend/pkg/errors"
)

// WalletRepository handles wallet and transaction database operations
type WalletRepository struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByUser retrieves a user's wallet for a currency
func (r *WalletRepository) GetByUser(ctx context.Context, userID, currency string) (*types.Wallet, error) {
	var w types.Wallet
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, currency, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1 AND currency = $2
	`, userID, currency).Scan(
		&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.CreatedAt, &w.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}

// CreditForPayment credits the creator's wallet and records the settled
// transaction in one database transaction. The wallet is created on
// first credit.
func (r *WalletRepository) CreditForPayment(ctx context.Context, userID, bookingID, providerRef string, amount float64, currency string) (*types.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var walletID string
	err = tx.QueryRow(ctx, `
		INSERT INTO wallets (id, user_id, currency, balance, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, currency)
		DO UPDATE SET balance = wallets.balance + $3, updated_at = NOW()
		RETURNING id
	`, userID, currency, amount).Scan(&walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	record := &types.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		WalletID:    walletID,
		BookingID:   &bookingID,
		Type:        "payment",
		Status:      "completed",
		Amount:      amount,
		Currency:    currency,
		Provider:    "flutterwave",
		ProviderRef: &providerRef,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO transactions
			(id, user_id, wallet_id, booking_id, type, status, amount, currency,
			 provider, provider_ref, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING completed_at, created_at
	`, record.ID, record.UserID, record.WalletID, record.BookingID,
		record.Type, record.Status, record.Amount, record.Currency,
		record.Provider, record.ProviderRef,
	).Scan(&record.CompletedAt, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit credit: %w", err)
	}

	return record, nil
}

// ListTransactions retrieves a user's transactions, newest first
func (r *WalletRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]types.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, wallet_id, booking_id, type, status, amount, currency,
		       provider, provider_ref, description, completed_at, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]types.Transaction, 0)
	for rows.Next() {
		var t types.Transaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.WalletID, &t.BookingID, &t.Type, &t.Status,
			&t.Amount, &t.Currency, &t.Provider, &t.ProviderRef,
			&t.Description, &t.CompletedAt, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}
