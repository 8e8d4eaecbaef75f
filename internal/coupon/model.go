package coupon

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the supported discount mechanisms.
type Type string

const (
	TypePercentage   Type = "PERCENTAGE"
	TypeFixed        Type = "FIXED"
	TypeBuyXGetY     Type = "BUY_X_GET_Y"
	TypeFreeShipping Type = "FREE_SHIPPING"
)

// Status enumerates coupon lifecycle states. EXPIRED and INACTIVE are
// terminal; nothing transitions out of them automatically.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusExpired  Status = "EXPIRED"
)

// BuyXGetY holds the structured rule for buy-x-get-y coupons.
type BuyXGetY struct {
	BuyQuantity int       `json:"buyQuantity"`
	GetQuantity int       `json:"getQuantity"`
	GetItemID   uuid.UUID `json:"getItemId"`
}

// Coupon is an administrator-issued, code-activated discount instrument.
type Coupon struct {
	ID                uuid.UUID  `json:"id"`
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	Type              Type       `json:"type"`
	DiscountValue     *float64   `json:"discountValue,omitempty"`
	MinOrderAmount    *float64   `json:"minOrderAmount,omitempty"`
	MaxDiscountAmount *float64   `json:"maxDiscountAmount,omitempty"`
	BuyXGetY          *BuyXGetY  `json:"buyXGetY,omitempty"`
	UsageLimit        *int32     `json:"usageLimit,omitempty"`
	UsageLimitPerUser *int32     `json:"usageLimitPerUser,omitempty"`
	UsageCount        int32      `json:"usageCount"`
	ValidFrom         *time.Time `json:"validFrom,omitempty"`
	ValidUntil        *time.Time `json:"validUntil,omitempty"`
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Usage is the append-only redemption record owned by a coupon and an order.
type Usage struct {
	ID             uuid.UUID  `json:"id"`
	CouponID       uuid.UUID  `json:"couponId"`
	OrderID        uuid.UUID  `json:"orderId"`
	UserID         *uuid.UUID `json:"userId,omitempty"`
	DiscountAmount float64    `json:"discountAmount"`
	UsedAt         time.Time  `json:"usedAt"`
}

// Item is an order line supplied when applying a coupon. Buy-x-get-y rules
// will need it for item-level matching once that behaviour is defined.
type Item struct {
	ItemID    uuid.UUID `json:"itemId"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unitPrice"`
}

// NormalizeCode canonicalises a coupon code. Codes are stored upper-cased
// and matched case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
