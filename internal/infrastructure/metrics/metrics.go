package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FulfillmentMetrics groups the counters the service exports on /metrics.
type FulfillmentMetrics struct {
	CheckoutsTotal        *prometheus.CounterVec
	CheckoutAmountTotal   *prometheus.CounterVec
	EventsReceivedTotal   *prometheus.CounterVec
	EventsAppliedTotal    *prometheus.CounterVec
	RestocksTotal         *prometheus.CounterVec
	ShipmentAttemptsTotal *prometheus.CounterVec
	ShipmentOutcomesTotal *prometheus.CounterVec
	JanitorRunsTotal      *prometheus.CounterVec

	CheckoutDuration prometheus.Histogram
	ApplyDuration    prometheus.Histogram
}

func NewFulfillmentMetrics() *FulfillmentMetrics {
	return &FulfillmentMetrics{
		CheckoutsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_checkouts_total",
			Help: "Checkout requests by outcome (created, replayed, failed kind)",
		}, []string{"outcome"}),
		CheckoutAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_checkout_amount_minor_total",
			Help: "Total checkout amount in minor units by currency",
		}, []string{"currency"}),
		EventsReceivedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_provider_events_received_total",
			Help: "Stored provider events by provider and dedup outcome",
		}, []string{"provider", "dedup"}),
		EventsAppliedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_provider_events_applied_total",
			Help: "Applied provider events by result and error code",
		}, []string{"result", "code"}),
		RestocksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_restocks_total",
			Help: "Restock invocations by reason and outcome",
		}, []string{"reason", "outcome"}),
		ShipmentAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_shipment_attempts_total",
			Help: "Carrier call attempts by outcome",
		}, []string{"outcome"}),
		ShipmentOutcomesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_shipment_terminal_total",
			Help: "Shipments reaching a terminal state",
		}, []string{"status"}),
		JanitorRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_janitor_runs_total",
			Help: "Janitor job runs by job name and outcome",
		}, []string{"job", "outcome"}),
		CheckoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fulfillment_checkout_duration_seconds",
			Help:    "Checkout latency",
			Buckets: prometheus.DefBuckets,
		}),
		ApplyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fulfillment_event_apply_duration_seconds",
			Help:    "Provider event application latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
