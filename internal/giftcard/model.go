package giftcard

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status enumerates gift card lifecycle states.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
)

// Card is a stored-value instrument redeemable against order totals.
type Card struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	PIN             *string    `json:"-"`
	OriginalBalance float64    `json:"originalBalance"`
	Balance         float64    `json:"balance"`
	Currency        string     `json:"currency"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Transaction is the immutable ledger entry appended on every redemption.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	GiftCardID  uuid.UUID  `json:"giftCardId"`
	OrderID     *uuid.UUID `json:"orderId,omitempty"`
	Amount      float64    `json:"amount"`
	Balance     float64    `json:"balance"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NormalizeCode canonicalises a gift card code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
