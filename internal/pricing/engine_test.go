package pricing

import "testing"

func f(v float64) *float64 { return &v }

func TestTax(t *testing.T) {
	if got := Tax(100, 0.0825); got != 8.25 {
		t.Fatalf("expected tax 8.25, got %v", got)
	}
	if got := Tax(0, 0.0825); got != 0 {
		t.Fatalf("expected zero tax on zero subtotal, got %v", got)
	}
	if got := Tax(100, 0); got != 0 {
		t.Fatalf("expected zero tax at zero rate, got %v", got)
	}
}

func TestDeliveryFee(t *testing.T) {
	const flat = 3.99
	if got := DeliveryFee(nil, f(50), f(30), flat); got != 0 {
		t.Fatalf("order below minimum must waive fee, got %v", got)
	}
	if got := DeliveryFee(nil, f(50), f(50), flat); got != flat {
		t.Fatalf("order at minimum pays flat fee, got %v", got)
	}
	if got := DeliveryFee(nil, nil, nil, flat); got != flat {
		t.Fatalf("no constraints defaults to flat fee, got %v", got)
	}
	if got := DeliveryFee(f(1.5), f(50), f(30), flat); got != 1.5 {
		t.Fatalf("custom fee wins unconditionally, got %v", got)
	}
}

func TestOrderTotal(t *testing.T) {
	if got := OrderTotal(100, 0.0825, 3.99, 5, 10); got != 107.24 {
		t.Fatalf("expected 107.24, got %v", got)
	}
	if got := OrderTotal(100, 0.0825, 0, 0, 0); got != 108.25 {
		t.Fatalf("expected 108.25, got %v", got)
	}
	if got := OrderTotal(10, 0.0825, 0, 0, 100); got != 0 {
		t.Fatalf("over-discounted total must clamp to zero, got %v", got)
	}
}

func TestQuotePickupWaivesDeliveryFee(t *testing.T) {
	snap := Quote(QuoteInput{
		Subtotal:           60,
		TaxRate:            0.0825,
		Fulfillment:        FulfillmentPickup,
		DefaultDeliveryFee: 3.99,
		Tip:                2,
	})
	if snap.DeliveryFee != 0 {
		t.Fatalf("pickup orders never pay delivery, got %v", snap.DeliveryFee)
	}
	if snap.Total != OrderTotal(60, 0.0825, 0, 2, 0) {
		t.Fatalf("snapshot total mismatch: %v", snap.Total)
	}
}

func TestQuoteDelivery(t *testing.T) {
	snap := Quote(QuoteInput{
		Subtotal:           100,
		TaxRate:            0.0825,
		Fulfillment:        FulfillmentDelivery,
		DefaultDeliveryFee: 3.99,
		Tip:                5,
		Discount:           10,
	})
	if snap.Total != 107.24 {
		t.Fatalf("expected 107.24, got %v", snap.Total)
	}
	if snap.Tax != 8.25 || snap.DeliveryFee != 3.99 {
		t.Fatalf("unexpected components: %+v", snap)
	}
}
