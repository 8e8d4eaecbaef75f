package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/money"
	"github.com/noah-isme/backend-resto/internal/obs"
)

// ErrCodeRequired is returned before any lookup when the code is blank.
var ErrCodeRequired = errors.New("coupon code is required")

// Store captures the persistence operations the resolver needs. All counter
// mutations are conditional updates at the storage layer so concurrent
// redemptions of the same coupon cannot lose updates.
type Store interface {
	GetByCode(ctx context.Context, code string) (Coupon, error)
	MarkExpired(ctx context.Context, id uuid.UUID) error
	MarkInactive(ctx context.Context, id uuid.UUID) error
	CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error)
	InsertUsage(ctx context.Context, u Usage) (Usage, error)
	// IncrementUsage bumps usage_count by one guarded by the usage limit,
	// returning the new count and the limit. It fails with
	// ErrUsageLimitReached when the quota is already exhausted.
	IncrementUsage(ctx context.Context, id uuid.UUID) (int32, *int32, error)
	WithTx(tx pgx.Tx) Store
}

// Result pairs a validated coupon with its computed discount amount.
type Result struct {
	Coupon   Coupon  `json:"coupon"`
	Discount float64 `json:"discount"`
}

// Service evaluates coupons against orders and records redemptions.
type Service struct {
	Store Store
	Now   func() time.Time
}

// Validate resolves and checks a coupon for the given order context without
// mutating any counter. Repeated calls never change usage_count. The one
// persisted side effect is the ACTIVE -> EXPIRED flip once the validity
// window has closed.
func (s *Service) Validate(ctx context.Context, code string, subtotal float64, userID *uuid.UUID) (Coupon, error) {
	if s == nil || s.Store == nil {
		return Coupon{}, errors.New("coupon service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Coupon{}, ErrCodeRequired
	}
	c, err := s.Store.GetByCode(ctx, normalized)
	if err != nil {
		return Coupon{}, err
	}
	elig := Eligibility{Now: s.now(), Subtotal: subtotal}
	if userID != nil {
		used, err := s.Store.CountUsageByUser(ctx, c.ID, *userID)
		if err != nil {
			return Coupon{}, err
		}
		elig.PriorUserUses = used
		elig.HasUser = true
	}
	if err := c.Validate(elig); err != nil {
		if errors.Is(err, ErrExpired) && c.Status == StatusActive {
			if markErr := s.Store.MarkExpired(ctx, c.ID); markErr != nil {
				return Coupon{}, markErr
			}
		}
		return Coupon{}, err
	}
	return c, nil
}

// Apply validates the coupon and computes its discount. It never records
// usage; recording happens separately once the order is durably created so
// failed orders cannot consume quota.
func (s *Service) Apply(ctx context.Context, code string, subtotal float64, items []Item, userID *uuid.UUID, deliveryFee float64) (Result, error) {
	c, err := s.Validate(ctx, code, subtotal, userID)
	if err != nil {
		return Result{}, err
	}
	_ = items // reserved for buy-x-get-y item matching
	return Result{Coupon: c, Discount: Discount(c, subtotal, deliveryFee)}, nil
}

// RecordUsage appends a usage row, increments the usage counter by exactly
// one, and flips the coupon INACTIVE when the increment exhausts the limit.
// Callers composing multi-ledger orders run this inside their transaction.
func (s *Service) RecordUsage(ctx context.Context, couponID, orderID uuid.UUID, discountAmount float64, userID *uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("coupon service not configured")
	}
	if discountAmount < 0 {
		discountAmount = 0
	}
	usage := Usage{
		CouponID:       couponID,
		OrderID:        orderID,
		UserID:         userID,
		DiscountAmount: money.Round2(discountAmount),
		UsedAt:         s.now(),
	}
	if _, err := s.Store.InsertUsage(ctx, usage); err != nil {
		return err
	}
	count, limit, err := s.Store.IncrementUsage(ctx, couponID)
	if err != nil {
		if obs.CouponUsageRecorded != nil {
			obs.CouponUsageRecorded.WithLabelValues("rejected").Inc()
		}
		return err
	}
	if limit != nil && count >= *limit {
		if obs.CouponUsageRecorded != nil {
			obs.CouponUsageRecorded.WithLabelValues("exhausted").Inc()
		}
		return s.Store.MarkInactive(ctx, couponID)
	}
	if obs.CouponUsageRecorded != nil {
		obs.CouponUsageRecorded.WithLabelValues("recorded").Inc()
	}
	return nil
}

// WithStore returns a copy of the service bound to the provided store,
// typically one scoped to an open transaction.
func (s *Service) WithStore(st Store) *Service {
	return &Service{Store: st, Now: s.Now}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
