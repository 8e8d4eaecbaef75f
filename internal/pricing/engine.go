package pricing

import "github.com/noah-isme/backend-resto/internal/money"

// Fulfillment describes how an order reaches the customer.
type Fulfillment string

const (
	// FulfillmentDelivery means the order is delivered and a delivery fee may apply.
	FulfillmentDelivery Fulfillment = "DELIVERY"
	// FulfillmentPickup means the customer collects the order; no delivery fee.
	FulfillmentPickup Fulfillment = "PICKUP"
)

// Snapshot aggregates the computed pricing components attached to an order.
type Snapshot struct {
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"deliveryFee"`
	Tip         float64 `json:"tip"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
}

// Tax computes sales tax on the subtotal at the given fractional rate.
func Tax(subtotal, rate float64) float64 {
	if subtotal <= 0 || rate <= 0 {
		return 0
	}
	return money.Round2(subtotal * rate)
}

// DeliveryFee resolves the fee charged for delivery. A custom fee, when
// supplied, wins unconditionally. Orders below the minimum order amount are
// not charged a fee; any nil parameter means "no constraint".
func DeliveryFee(custom, minOrder, subtotal *float64, defaultFee float64) float64 {
	if custom != nil {
		return *custom
	}
	if minOrder != nil && subtotal != nil && *subtotal < *minOrder {
		return 0
	}
	return defaultFee
}

// OrderTotal combines subtotal, tax, delivery fee, tip and discount into the
// payable total. Each component is rounded as it is added; the final result
// is clamped at zero. The clamp here is the single authoritative
// non-negativity guarantee across all combined discount sources.
func OrderTotal(subtotal, taxRate, deliveryFee, tip, discount float64) float64 {
	total := money.Round2(subtotal)
	total = money.Round2(total + Tax(subtotal, taxRate))
	total = money.Round2(total + deliveryFee)
	total = money.Round2(total + tip)
	total = money.Round2(total - discount)
	if total < 0 {
		return 0
	}
	return total
}

// QuoteInput carries everything needed to price an order.
type QuoteInput struct {
	Subtotal           float64
	TaxRate            float64
	Fulfillment        Fulfillment
	CustomDeliveryFee  *float64
	MinOrderAmount     *float64
	DefaultDeliveryFee float64
	Tip                float64
	Discount           float64
}

// Quote produces the authoritative pricing snapshot for an order. Pickup
// orders never carry a delivery fee regardless of the fee policy inputs.
func Quote(in QuoteInput) Snapshot {
	subtotal := in.Subtotal
	fee := DeliveryFee(in.CustomDeliveryFee, in.MinOrderAmount, &subtotal, in.DefaultDeliveryFee)
	if in.Fulfillment == FulfillmentPickup {
		fee = 0
	}
	return Snapshot{
		Subtotal:    money.Round2(subtotal),
		Tax:         Tax(subtotal, in.TaxRate),
		DeliveryFee: money.Round2(fee),
		Tip:         money.Round2(in.Tip),
		Discount:    money.Round2(in.Discount),
		Total:       OrderTotal(subtotal, in.TaxRate, fee, in.Tip, in.Discount),
	}
}
