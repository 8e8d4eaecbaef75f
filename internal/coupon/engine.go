package coupon

import (
	"errors"
	"time"

	"github.com/noah-isme/backend-resto/internal/money"
)

var (
	// ErrNotFound is returned when no coupon exists for the given code.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotActive is returned when the coupon is inactive or already expired.
	ErrNotActive = errors.New("coupon not active")
	// ErrNotStarted is returned when the validity window has not opened yet.
	ErrNotStarted = errors.New("coupon not yet valid")
	// ErrExpired is returned when the validity window has closed.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached indicates the global usage quota is exhausted.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerUserLimitReached indicates the caller exceeded their allowance.
	ErrPerUserLimitReached = errors.New("coupon per-user usage limit reached")
	// ErrMinOrderNotMet indicates the order subtotal is below the coupon threshold.
	ErrMinOrderNotMet = errors.New("coupon minimum order amount not met")
)

// Eligibility is the evaluated context a coupon is validated against.
type Eligibility struct {
	Now           time.Time
	Subtotal      float64
	PriorUserUses int64
	HasUser       bool
}

// Validate checks the coupon against the eligibility context. Checks run in
// a fixed order and the first failure wins; callers rely on this ordering
// for user-facing error precision.
func (c Coupon) Validate(e Eligibility) error {
	if c.Status != StatusActive {
		return ErrNotActive
	}
	if c.ValidFrom != nil && e.Now.Before(*c.ValidFrom) {
		return ErrNotStarted
	}
	if c.ValidUntil != nil && e.Now.After(*c.ValidUntil) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if e.HasUser && c.UsageLimitPerUser != nil && e.PriorUserUses >= int64(*c.UsageLimitPerUser) {
		return ErrPerUserLimitReached
	}
	if c.MinOrderAmount != nil && e.Subtotal < *c.MinOrderAmount {
		return ErrMinOrderNotMet
	}
	return nil
}

// Discount computes the discount amount for an already-validated coupon.
// The result is clamped at zero and rounded to two decimal places.
func Discount(c Coupon, subtotal, deliveryFee float64) float64 {
	var d float64
	switch c.Type {
	case TypePercentage:
		if c.DiscountValue != nil {
			d = subtotal * *c.DiscountValue / 100
		}
		if c.MaxDiscountAmount != nil && d > *c.MaxDiscountAmount {
			d = *c.MaxDiscountAmount
		}
	case TypeFixed:
		if c.DiscountValue != nil {
			d = *c.DiscountValue
		}
		if d > subtotal {
			d = subtotal
		}
	case TypeFreeShipping:
		d = deliveryFee
	case TypeBuyXGetY:
		// Item-level matching against buyXGetY.getItemId is undefined for
		// now; product has not specified the pairing rules, so the discount
		// stays zero rather than guessing.
		d = 0
	}
	if d < 0 {
		d = 0
	}
	return money.Round2(d)
}
