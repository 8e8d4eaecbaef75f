package giftcard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/db"
)

const cardColumns = `id, code, pin, original_balance, balance, currency, expires_at, status, created_at, updated_at`

// PGStore persists gift cards and their transaction ledger in Postgres.
type PGStore struct {
	DB db.DBTX
}

// WithTx returns a store bound to the provided transaction.
func (s PGStore) WithTx(tx pgx.Tx) Store {
	return PGStore{DB: tx}
}

// GetByCode fetches a card by its canonical code.
func (s PGStore) GetByCode(ctx context.Context, code string) (Card, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+cardColumns+` FROM gift_cards WHERE code = $1`, NormalizeCode(code))
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Card{}, ErrNotFound
		}
		return Card{}, fmt.Errorf("get gift card: %w", err)
	}
	return card, nil
}

// Debit decrements the balance by amount as a single conditional update and
// returns the new balance. It fails with ErrInsufficientBalance when the
// balance guard rejects the update, leaving the row untouched.
func (s PGStore) Debit(ctx context.Context, id uuid.UUID, amount float64) (float64, error) {
	var balance float64
	err := s.DB.QueryRow(ctx, `
		UPDATE gift_cards
		SET balance = balance - $2, updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE' AND balance >= $2
		RETURNING balance`, id, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientBalance
		}
		return 0, fmt.Errorf("debit gift card: %w", err)
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
		INSERT INTO gift_card_transactions (gift_card_id, order_id, amount, balance, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		t.GiftCardID, t.OrderID, t.Amount, t.Balance, t.Description, createdAt)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return Transaction{}, fmt.Errorf("insert gift card transaction: %w", err)
	}
	return t, nil
}

// Create issues a new card with the given opening balance.
func (s PGStore) Create(ctx context.Context, card Card) (Card, error) {
	card.Code = NormalizeCode(card.Code)
	if card.Status == "" {
		card.Status = StatusActive
	}
	if card.Currency == "" {
		card.Currency = "USD"
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO gift_cards (code, pin, original_balance, balance, currency, expires_at, status)
		VALUES ($1, $2, $3, $3, $4, $5, $6)
		RETURNING `+cardColumns,
		card.Code, card.PIN, card.OriginalBalance, card.Currency, card.ExpiresAt, card.Status)
	created, err := scanCard(row)
	if err != nil {
		return Card{}, fmt.Errorf("create gift card: %w", err)
	}
	return created, nil
}

// ListTransactions returns the ledger for a card, oldest first.
func (s PGStore) ListTransactions(ctx context.Context, cardID uuid.UUID) ([]Transaction, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, gift_card_id, order_id, amount, balance, description, created_at
		FROM gift_card_transactions WHERE gift_card_id = $1 ORDER BY created_at`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list gift card transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.GiftCardID, &t.OrderID, &t.Amount, &t.Balance, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("list gift card transactions: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanCard(row pgx.Row) (Card, error) {
	var c Card
	err := row.Scan(&c.ID, &c.Code, &c.PIN, &c.OriginalBalance, &c.Balance, &c.Currency,
		&c.ExpiresAt, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Card{}, err
	}
	return c, nil
}
