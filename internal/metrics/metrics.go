package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics covers the purchase and settlement pipeline.
type PaymentMetrics struct {
	OrdersCreatedTotal      prometheus.Counter
	OrdersExpiredTotal      prometheus.Counter
	SettlementsTotal        prometheus.Counter
	SettledAmountTotal      prometheus.Counter
	PlatformFeeTotal        prometheus.Counter
	DuplicateCallbacksTotal prometheus.Counter
	InvalidSignaturesTotal  prometheus.Counter
	SettlementDuration      prometheus.Histogram

	NotificationsDispatched prometheus.Counter
	NotificationsRetried    prometheus.Counter
	NotificationsDeadLetter prometheus.Counter
}

// NewPaymentMetrics registers the collectors on reg. Tests pass a fresh
// registry so parallel suites do not collide on collector names.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	factory := promauto.With(reg)
	return &PaymentMetrics{
		OrdersCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_orders_created_total",
			Help: "Pending purchase orders created",
		}),
		OrdersExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_orders_expired_total",
			Help: "Pending orders expired by the reaper",
		}),
		SettlementsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_settlements_total",
			Help: "Orders settled exactly once",
		}),
		SettledAmountTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_settled_amount_minor_units_total",
			Help: "Gross settled amount in minor units",
		}),
		PlatformFeeTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_platform_fee_minor_units_total",
			Help: "Platform fee collected in minor units",
		}),
		DuplicateCallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_duplicate_callbacks_total",
			Help: "Provider callbacks for orders already settled",
		}),
		InvalidSignaturesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_invalid_signatures_total",
			Help: "Callbacks rejected for signature mismatch",
		}),
		SettlementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "payments_settlement_duration_seconds",
			Help:    "Settlement transaction duration",
			Buckets: prometheus.DefBuckets,
		}),
		NotificationsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_notifications_dispatched_total",
			Help: "Notification jobs processed successfully",
		}),
		NotificationsRetried: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_notifications_retried_total",
			Help: "Notification job attempts that will be retried",
		}),
		NotificationsDeadLetter: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_notifications_dead_letter_total",
			Help: "Notification jobs parked after exhausting attempts",
		}),
	}
}
