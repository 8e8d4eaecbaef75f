package loyalty

import (
	"time"

	"github.com/google/uuid"
)

// Account tracks a user's accrued loyalty points. The balance never goes
// negative; redemptions that would overdraw it are rejected before any
// mutation.
type Account struct {
	UserID    uuid.UUID `json:"userId"`
	Points    int64     `json:"points"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Transaction is the immutable ledger entry appended on every point movement.
// Points is negative for redemptions and positive for grants.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	OrderID     *uuid.UUID `json:"orderId,omitempty"`
	Points      int64      `json:"points"`
	Balance     int64      `json:"balance"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Redemption is the outcome of converting points into a discount.
type Redemption struct {
	DiscountAmount float64 `json:"discountAmount"`
	NewBalance     int64   `json:"newBalance"`
}
