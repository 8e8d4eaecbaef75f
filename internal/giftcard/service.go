package giftcard

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/money"
)

var (
	// ErrNotFound is returned when no card exists for the given code.
	ErrNotFound = errors.New("gift card not found")
	// ErrDisabled is returned for cards taken out of circulation.
	ErrDisabled = errors.New("gift card disabled")
	// ErrPINMismatch is returned when the card requires a PIN and it does not match.
	ErrPINMismatch = errors.New("gift card pin mismatch")
	// ErrExpired is returned once the card's expiry has passed.
	ErrExpired = errors.New("gift card expired")
	// ErrDepleted is returned when the card has no remaining balance.
	ErrDepleted = errors.New("gift card balance exhausted")
	// ErrInsufficientBalance is returned when a redemption exceeds the balance.
	ErrInsufficientBalance = errors.New("gift card balance insufficient")
	// ErrInvalidAmount is returned for non-positive redemption amounts.
	ErrInvalidAmount = errors.New("redemption amount must be positive")
)

// Store captures the persistence operations of the gift card ledger. Debit
// is a single conditional update so concurrent redemptions of the same card
// can never drive the balance negative.
type Store interface {
	GetByCode(ctx context.Context, code string) (Card, error)
	Debit(ctx context.Context, id uuid.UUID, amount float64) (float64, error)
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	WithTx(tx pgx.Tx) Store
}

// Beginner starts storage transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service validates and redeems gift cards.
type Service struct {
	Store Store
	// Pool, when set, wraps each redemption's debit-and-append in one
	// transaction. Leave nil when the caller already owns a transaction.
	Pool Beginner
	Now  func() time.Time
}

// Validate resolves a card and checks it is usable. PIN verification uses a
// constant-time comparison and runs before any lifecycle check, so a wrong
// PIN never reveals whether the card is disabled, expired, or empty.
func (s *Service) Validate(ctx context.Context, code string, pin *string) (Card, error) {
	if s == nil || s.Store == nil {
		return Card{}, errors.New("gift card service not configured")
	}
	card, err := s.Store.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return Card{}, err
	}
	if card.PIN != nil {
		supplied := ""
		if pin != nil {
			supplied = *pin
		}
		if subtle.ConstantTimeCompare([]byte(*card.PIN), []byte(supplied)) != 1 {
			return Card{}, ErrPINMismatch
		}
	}
	if card.Status != StatusActive {
		return Card{}, ErrDisabled
	}
	if card.ExpiresAt != nil && s.now().After(*card.ExpiresAt) {
		return Card{}, ErrExpired
	}
	if card.Balance <= 0 {
		return Card{}, ErrDepleted
	}
	return card, nil
}

// CheckBalance is the read-only, PIN-free variant backing the public
// "check my balance" affordance. It exposes only the numeric balance.
func (s *Service) CheckBalance(ctx context.Context, code string) (float64, error) {
	if s == nil || s.Store == nil {
		return 0, errors.New("gift card service not configured")
	}
	card, err := s.Store.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return 0, err
	}
	return card.Balance, nil
}

// Redeem debits the card and appends the ledger entry as one atomic unit.
func (s *Service) Redeem(ctx context.Context, code string, pin *string, amount float64, orderID *uuid.UUID, description *string) (Transaction, error) {
	card, err := s.Validate(ctx, code, pin)
	if err != nil {
		return Transaction{}, err
	}
	amount = money.Round2(amount)
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if s.Pool == nil {
		return s.redeem(ctx, s.Store, card.ID, amount, orderID, description)
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	txn, err := s.redeem(ctx, s.Store.WithTx(tx), card.ID, amount, orderID, description)
	if err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

func (s *Service) redeem(ctx context.Context, st Store, cardID uuid.UUID, amount float64, orderID *uuid.UUID, description *string) (Transaction, error) {
	balance, err := st.Debit(ctx, cardID, amount)
	if err != nil {
		return Transaction{}, err
	}
	return st.InsertTransaction(ctx, Transaction{
		GiftCardID:  cardID,
		OrderID:     orderID,
		Amount:      amount,
		Balance:     balance,
		Description: description,
		CreatedAt:   s.now(),
	})
}

// WithStore returns a copy of the service bound to the provided store,
// typically one scoped to a caller-owned transaction.
func (s *Service) WithStore(st Store) *Service {
	return &Service{Store: st, Now: s.Now}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
