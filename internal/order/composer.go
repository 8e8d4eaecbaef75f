package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/coupon"
	"github.com/noah-isme/backend-resto/internal/giftcard"
	"github.com/noah-isme/backend-resto/internal/loyalty"
	"github.com/noah-isme/backend-resto/internal/money"
	"github.com/noah-isme/backend-resto/internal/pricing"
	"github.com/noah-isme/backend-resto/internal/settings"
)

// Instrument identifies which discount source a composition failure came from.
type Instrument string

const (
	InstrumentCoupon   Instrument = "coupon"
	InstrumentGiftCard Instrument = "gift_card"
	InstrumentLoyalty  Instrument = "loyalty"
)

// InstrumentError wraps a resolution failure with the instrument that caused
// it, so callers can tell the user exactly which discount was rejected.
type InstrumentError struct {
	Instrument Instrument
	Err        error
}

func (e *InstrumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Instrument, e.Err)
}

func (e *InstrumentError) Unwrap() error { return e.Err }

// GiftCardInput names a card and the amount to draw from it.
type GiftCardInput struct {
	Code   string
	PIN    *string
	Amount float64
}

// Input carries an order's raw pricing facts and its discount instruments.
type Input struct {
	Subtotal          float64
	Fulfillment       pricing.Fulfillment
	Tip               float64
	CustomDeliveryFee *float64
	UserID            *uuid.UUID
	OrderID           *uuid.UUID
	CouponCode        *string
	Items             []coupon.Item
	GiftCard          *GiftCardInput
	LoyaltyPoints     *int64
}

// Breakdown is the composed pricing result: the authoritative snapshot plus
// the per-instrument discount amounts that went into it.
type Breakdown struct {
	pricing.Snapshot
	Coupon          *coupon.Coupon `json:"coupon,omitempty"`
	CouponDiscount  float64        `json:"couponDiscount"`
	GiftCardApplied float64        `json:"giftCardApplied"`
	LoyaltyDiscount float64        `json:"loyaltyDiscount"`
	GiftCardBalance *float64       `json:"giftCardBalance,omitempty"`
	LoyaltyBalance  *int64         `json:"loyaltyBalance,omitempty"`
}

// SettingsSource supplies the restaurant-wide pricing configuration.
type SettingsSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Beginner starts storage transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Composer orchestrates the pricing engine and the three discount ledgers
// into one authoritative snapshot per order. Quote never mutates anything;
// Price validates every instrument before committing any ledger mutation,
// all inside one transaction, so a failing instrument never leaves another
// partially applied.
type Composer struct {
	Settings  SettingsSource
	Coupons   *coupon.Service
	GiftCards *giftcard.Service
	Loyalty   *loyalty.Service
	Pool      Beginner
}

type resolved struct {
	coupon          *coupon.Coupon
	couponDiscount  float64
	giftCard        *giftcard.Card
	giftCardAmount  float64
	loyaltyPoints   int64
	loyaltyDiscount float64
	fee             float64
	taxRate         float64
}

// Quote prices the order without touching any ledger. The returned breakdown
// reflects what Price would charge if called with the same input now.
func (c *Composer) Quote(ctx context.Context, in Input) (Breakdown, error) {
	res, err := c.resolve(ctx, in)
	if err != nil {
		return Breakdown{}, err
	}
	return c.breakdown(in, res), nil
}

// Price resolves every instrument and then commits all ledger mutations
// (gift card debit, loyalty debit, coupon usage) in a single transaction.
// Any failure aborts the whole composition; nothing is partially applied.
func (c *Composer) Price(ctx context.Context, in Input) (Breakdown, error) {
	if c.Pool == nil {
		return Breakdown{}, errors.New("order composer not configured with a transaction source")
	}
	res, err := c.resolve(ctx, in)
	if err != nil {
		return Breakdown{}, err
	}
	orderID := uuid.New()
	if in.OrderID != nil {
		orderID = *in.OrderID
	}

	tx, err := c.Pool.Begin(ctx)
	if err != nil {
		return Breakdown{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	out := c.breakdown(in, res)
	if res.giftCard != nil {
		svc := c.GiftCards.WithStore(c.GiftCards.Store.WithTx(tx))
		txn, err := svc.Redeem(ctx, res.giftCard.Code, in.GiftCard.PIN, res.giftCardAmount, &orderID, nil)
		if err != nil {
			return Breakdown{}, &InstrumentError{Instrument: InstrumentGiftCard, Err: err}
		}
		out.GiftCardBalance = &txn.Balance
	}
	if res.loyaltyPoints > 0 {
		svc := c.Loyalty.WithStore(c.Loyalty.Store.WithTx(tx))
		redemption, err := svc.Redeem(ctx, *in.UserID, res.loyaltyPoints, &orderID, nil)
		if err != nil {
			return Breakdown{}, &InstrumentError{Instrument: InstrumentLoyalty, Err: err}
		}
		out.LoyaltyBalance = &redemption.NewBalance
	}
	if res.coupon != nil {
		svc := c.Coupons.WithStore(c.Coupons.Store.WithTx(tx))
		if err := svc.RecordUsage(ctx, res.coupon.ID, orderID, res.couponDiscount, in.UserID); err != nil {
			return Breakdown{}, &InstrumentError{Instrument: InstrumentCoupon, Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Breakdown{}, err
	}
	return out, nil
}

// resolve validates every supplied instrument and computes its discount
// without mutating any ledger.
func (c *Composer) resolve(ctx context.Context, in Input) (resolved, error) {
	cfg, err := c.Settings.Get(ctx)
	if err != nil {
		return resolved{}, err
	}
	res := resolved{taxRate: cfg.TaxRate}
	subtotal := in.Subtotal
	res.fee = pricing.DeliveryFee(in.CustomDeliveryFee, cfg.MinOrderAmount, &subtotal, cfg.DefaultDeliveryFee)
	if in.Fulfillment == pricing.FulfillmentPickup {
		res.fee = 0
	}

	if in.CouponCode != nil {
		result, err := c.Coupons.Apply(ctx, *in.CouponCode, in.Subtotal, in.Items, in.UserID, res.fee)
		if err != nil {
			return resolved{}, &InstrumentError{Instrument: InstrumentCoupon, Err: err}
		}
		res.coupon = &result.Coupon
		res.couponDiscount = result.Discount
	}
	if in.GiftCard != nil {
		card, err := c.GiftCards.Validate(ctx, in.GiftCard.Code, in.GiftCard.PIN)
		if err != nil {
			return resolved{}, &InstrumentError{Instrument: InstrumentGiftCard, Err: err}
		}
		amount := money.Round2(in.GiftCard.Amount)
		if amount <= 0 {
			return resolved{}, &InstrumentError{Instrument: InstrumentGiftCard, Err: giftcard.ErrInvalidAmount}
		}
		if amount > card.Balance {
			return resolved{}, &InstrumentError{Instrument: InstrumentGiftCard, Err: giftcard.ErrInsufficientBalance}
		}
		res.giftCard = &card
		res.giftCardAmount = amount
	}
	if in.LoyaltyPoints != nil {
		points := *in.LoyaltyPoints
		if points <= 0 {
			return resolved{}, &InstrumentError{Instrument: InstrumentLoyalty, Err: loyalty.ErrInvalidPoints}
		}
		if in.UserID == nil {
			return resolved{}, &InstrumentError{Instrument: InstrumentLoyalty, Err: loyalty.ErrAccountNotFound}
		}
		balance, err := c.Loyalty.Balance(ctx, *in.UserID)
		if err != nil {
			return resolved{}, &InstrumentError{Instrument: InstrumentLoyalty, Err: err}
		}
		if points > balance {
			return resolved{}, &InstrumentError{Instrument: InstrumentLoyalty, Err: loyalty.ErrInsufficientPoints}
		}
		res.loyaltyPoints = points
		res.loyaltyDiscount = c.Loyalty.Discount(points)
	}
	return res, nil
}

// breakdown combines the resolved discounts into the snapshot. The summed
// discount feeds the total once; the clamp happens there and nowhere else.
func (c *Composer) breakdown(in Input, res resolved) Breakdown {
	discount := money.Round2(res.couponDiscount + res.giftCardAmount + res.loyaltyDiscount)
	snap := pricing.Quote(pricing.QuoteInput{
		Subtotal:           in.Subtotal,
		TaxRate:            res.taxRate,
		Fulfillment:        in.Fulfillment,
		CustomDeliveryFee:  &res.fee,
		DefaultDeliveryFee: res.fee,
		Tip:                in.Tip,
		Discount:           discount,
	})
	return Breakdown{
		Snapshot:        snap,
		Coupon:          res.coupon,
		CouponDiscount:  res.couponDiscount,
		GiftCardApplied: res.giftCardAmount,
		LoyaltyDiscount: res.loyaltyDiscount,
	}
}
