package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CouponResolutionTotal counts coupon validate/apply outcomes.
	CouponResolutionTotal *prometheus.CounterVec
	// CouponUsageRecorded counts successful usage recordings, including the
	// ones that exhausted the coupon's quota.
	CouponUsageRecorded *prometheus.CounterVec
	// GiftCardRedemptionTotal counts gift card debit outcomes.
	GiftCardRedemptionTotal *prometheus.CounterVec
	// LoyaltyRedemptionTotal counts loyalty point redemption outcomes.
	LoyaltyRedemptionTotal *prometheus.CounterVec
	// OrderCompositionTotal counts quote/price compositions by outcome and
	// the instrument that failed, when one did.
	OrderCompositionTotal *prometheus.CounterVec
	// OrderCompositionLatency records composition latency in milliseconds.
	OrderCompositionLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CouponResolutionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_resolution_total",
			Help:      "Count of coupon validation and application outcomes.",
		}, []string{"operation", "result"})
		CouponUsageRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_usage_recorded_total",
			Help:      "Count of recorded coupon redemptions.",
		}, []string{"result"})
		GiftCardRedemptionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gift_card_redemption_total",
			Help:      "Count of gift card redemption outcomes.",
		}, []string{"result"})
		LoyaltyRedemptionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_redemption_total",
			Help:      "Count of loyalty point redemption outcomes.",
		}, []string{"result"})
		OrderCompositionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_composition_total",
			Help:      "Count of order pricing compositions by outcome.",
		}, []string{"operation", "result", "instrument"})
		OrderCompositionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_composition_duration_ms",
			Help:      "Latency for order pricing compositions in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"operation"})

		mustRegisterCollector(reg, CouponResolutionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponResolutionTotal = v
			}
		})
		mustRegisterCollector(reg, CouponUsageRecorded, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponUsageRecorded = v
			}
		})
		mustRegisterCollector(reg, GiftCardRedemptionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				GiftCardRedemptionTotal = v
			}
		})
		mustRegisterCollector(reg, LoyaltyRedemptionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LoyaltyRedemptionTotal = v
			}
		})
		mustRegisterCollector(reg, OrderCompositionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderCompositionTotal = v
			}
		})
		mustRegisterCollector(reg, OrderCompositionLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				OrderCompositionLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
