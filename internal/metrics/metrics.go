package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the engine's Prometheus metrics behind one registry.
type Collector struct {
	registry        *prometheus.Registry
	bookings        prometheus.Counter
	bookingFailures *prometheus.CounterVec
	refunds         prometheus.Counter
	refundReversals prometheus.Counter
	topUpsSubmitted prometheus.Counter
	topUpsResolved  *prometheus.CounterVec
}

// NewCollector builds the metric set on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	return &Collector{
		registry: registry,
		bookings: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Total number of successfully booked sessions",
		}),
		bookingFailures: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "booking_failures_total",
			Help: "Booking attempts that failed, by reason",
		}, []string{"reason"}),
		refunds: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Total number of refunds issued for rejected sessions",
		}),
		refundReversals: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "refund_reversals_total",
			Help: "Refunds clawed back after a rejection lost a status race",
		}),
		topUpsSubmitted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "topups_submitted_total",
			Help: "Total number of submitted top-up requests",
		}),
		topUpsResolved: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "topups_resolved_total",
			Help: "Top-up requests resolved by an administrator, by outcome",
		}, []string{"outcome"}),
	}
}

// RecordBooking counts one successful booking.
func (c *Collector) RecordBooking() {
	if c == nil {
		return
	}
	c.bookings.Inc()
}

// RecordBookingFailure counts one failed booking attempt.
func (c *Collector) RecordBookingFailure(reason string) {
	if c == nil {
		return
	}
	c.bookingFailures.WithLabelValues(reason).Inc()
}

// RecordRefund counts one issued refund.
func (c *Collector) RecordRefund() {
	if c == nil {
		return
	}
	c.refunds.Inc()
}

// RecordRefundReversal counts one refund clawed back after a lost status race.
func (c *Collector) RecordRefundReversal() {
	if c == nil {
		return
	}
	c.refundReversals.Inc()
}

// RecordTopUpSubmitted counts one submitted top-up request.
func (c *Collector) RecordTopUpSubmitted() {
	if c == nil {
		return
	}
	c.topUpsSubmitted.Inc()
}

// RecordTopUpResolved counts one resolved top-up request.
func (c *Collector) RecordTopUpResolved(outcome string) {
	if c == nil {
		return
	}
	c.topUpsResolved.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
