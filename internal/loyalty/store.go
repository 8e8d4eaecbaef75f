package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/db"
)

// PGStore persists loyalty accounts and their ledger in Postgres.
type PGStore struct {
	DB db.DBTX
}

// WithTx returns a store bound to the provided transaction.
func (s PGStore) WithTx(tx pgx.Tx) Store {
	return PGStore{DB: tx}
}

// GetAccount fetches a user's loyalty account.
func (s PGStore) GetAccount(ctx context.Context, userID uuid.UUID) (Account, error) {
	var a Account
	err := s.DB.QueryRow(ctx,
		`SELECT user_id, points, created_at, updated_at FROM loyalty_accounts WHERE user_id = $1`, userID).
		Scan(&a.UserID, &a.Points, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("get loyalty account: %w", err)
	}
	return a, nil
}

// DebitPoints decrements the balance as a single conditional update and
// returns the new balance. It fails with ErrInsufficientPoints when the
// guard rejects the update, leaving the row untouched.
func (s PGStore) DebitPoints(ctx context.Context, userID uuid.UUID, points int64) (int64, error) {
	var balance int64
	err := s.DB.QueryRow(ctx, `
		UPDATE loyalty_accounts
		SET points = points - $2, updated_at = now()
		WHERE user_id = $1 AND points >= $2
		RETURNING points`, userID, points).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientPoints
		}
		return 0, fmt.Errorf("debit loyalty points: %w", err)
	}
	return balance, nil
}

// CreditPoints adds points to a user's account, creating it when absent.
func (s PGStore) CreditPoints(ctx context.Context, userID uuid.UUID, points int64) (int64, error) {
	var balance int64
	err := s.DB.QueryRow(ctx, `
		INSERT INTO loyalty_accounts (user_id, points)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET points = loyalty_accounts.points + EXCLUDED.points, updated_at = now()
		RETURNING points`, userID, points).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("credit loyalty points: %w", err)
	}
	return balance, nil
}

// InsertTransaction appends an immutable ledger entry.
func (s PGStore) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO loyalty_transactions (user_id, order_id, points, balance, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		t.UserID, t.OrderID, t.Points, t.Balance, t.Description, createdAt)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return Transaction{}, fmt.Errorf("insert loyalty transaction: %w", err)
	}
	return t, nil
}
