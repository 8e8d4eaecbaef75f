package loyalty

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/money"
)

var (
	// ErrAccountNotFound is returned when the user has no loyalty account.
	ErrAccountNotFound = errors.New("loyalty account not found")
	// ErrInsufficientPoints is returned when a redemption exceeds the balance.
	ErrInsufficientPoints = errors.New("loyalty balance insufficient")
	// ErrInvalidPoints is returned for non-positive redemption amounts.
	ErrInvalidPoints = errors.New("points must be positive")
)

// Store captures the persistence operations of the loyalty ledger. Debit is
// a single conditional update so concurrent redemptions against the same
// account can never overdraw it.
type Store interface {
	GetAccount(ctx context.Context, userID uuid.UUID) (Account, error)
	DebitPoints(ctx context.Context, userID uuid.UUID, points int64) (int64, error)
	CreditPoints(ctx context.Context, userID uuid.UUID, points int64) (int64, error)
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	WithTx(tx pgx.Tx) Store
}

// Beginner starts storage transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service redeems loyalty points into order discounts.
type Service struct {
	Store Store
	// Pool, when set, wraps each redemption's debit-and-append in one
	// transaction. Leave nil when the caller already owns a transaction.
	Pool Beginner
	// PointsPerUnit is how many points convert into one major currency
	// unit. It is configuration, never a hardcoded constant.
	PointsPerUnit int64
	Now           func() time.Time
}

// Discount converts a point amount into currency at the configured ratio.
func (s *Service) Discount(points int64) float64 {
	if s == nil || s.PointsPerUnit <= 0 || points <= 0 {
		return 0
	}
	return money.Round2(float64(points) / float64(s.PointsPerUnit))
}

// Balance returns the current point balance for a user.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s == nil || s.Store == nil {
		return 0, errors.New("loyalty service not configured")
	}
	account, err := s.Store.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Points, nil
}

// Redeem converts points into a discount, decrementing the balance and
// appending the ledger entry as one atomic unit.
func (s *Service) Redeem(ctx context.Context, userID uuid.UUID, points int64, orderID *uuid.UUID, description *string) (Redemption, error) {
	if s == nil || s.Store == nil {
		return Redemption{}, errors.New("loyalty service not configured")
	}
	if points <= 0 {
		return Redemption{}, ErrInvalidPoints
	}
	account, err := s.Store.GetAccount(ctx, userID)
	if err != nil {
		return Redemption{}, err
	}
	if points > account.Points {
		return Redemption{}, ErrInsufficientPoints
	}
	if s.Pool == nil {
		return s.redeem(ctx, s.Store, userID, points, orderID, description)
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Redemption{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	redemption, err := s.redeem(ctx, s.Store.WithTx(tx), userID, points, orderID, description)
	if err != nil {
		return Redemption{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Redemption{}, err
	}
	return redemption, nil
}

// Grant credits points to a user, creating the account when absent. The
// credit and its ledger entry commit as one atomic unit, same as Redeem.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, points int64, description *string) (int64, error) {
	if s == nil || s.Store == nil {
		return 0, errors.New("loyalty service not configured")
	}
	if points <= 0 {
		return 0, ErrInvalidPoints
	}
	if s.Pool == nil {
		return s.grant(ctx, s.Store, userID, points, description)
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	balance, err := s.grant(ctx, s.Store.WithTx(tx), userID, points, description)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Service) grant(ctx context.Context, st Store, userID uuid.UUID, points int64, description *string) (int64, error) {
	balance, err := st.CreditPoints(ctx, userID, points)
	if err != nil {
		return 0, err
	}
	_, err = st.InsertTransaction(ctx, Transaction{
		UserID:      userID,
		Points:      points,
		Balance:     balance,
		Description: description,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// WithStore returns a copy of the service bound to the provided store,
// typically one scoped to a caller-owned transaction.
func (s *Service) WithStore(st Store) *Service {
	return &Service{Store: st, PointsPerUnit: s.PointsPerUnit, Now: s.Now}
}

func (s *Service) redeem(ctx context.Context, st Store, userID uuid.UUID, points int64, orderID *uuid.UUID, description *string) (Redemption, error) {
	balance, err := st.DebitPoints(ctx, userID, points)
	if err != nil {
		return Redemption{}, err
	}
	_, err = st.InsertTransaction(ctx, Transaction{
		UserID:      userID,
		OrderID:     orderID,
		Points:      -points,
		Balance:     balance,
		Description: description,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return Redemption{}, err
	}
	return Redemption{DiscountAmount: s.Discount(points), NewBalance: balance}, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
