package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderFlowMetrics records counters and timings for the order pipeline.
type OrderFlowMetrics struct {
	created          *prometheus.CounterVec
	cancelled        *prometheus.CounterVec
	reservationFails *prometheus.CounterVec
	complianceBlocks *prometheus.CounterVec
	sequenceRetries  prometheus.Counter
	checkoutDuration prometheus.Histogram
}

// NewOrderFlowMetrics registers the order pipeline metrics on the provided registerer.
func NewOrderFlowMetrics(reg prometheus.Registerer) *OrderFlowMetrics {
	if reg == nil {
		return &OrderFlowMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders accepted by the order engine.",
	}, []string{"source"})
	cancelled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Orders cancelled, by the status they were cancelled from.",
	}, []string{"from_status"})
	reservationFails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservation_failures_total",
		Help: "Stock reservations rejected for insufficient availability.",
	}, []string{"sku"})
	complianceBlocks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_blocks_total",
		Help: "Orders routed to compliance review, by flag.",
	}, []string{"flag"})
	sequenceRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_number_retries_total",
		Help: "Retries taken while assigning order numbers.",
	})
	checkoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of order creation in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(created, cancelled, reservationFails, complianceBlocks, sequenceRetries, checkoutDuration)
	return &OrderFlowMetrics{
		created:          created,
		cancelled:        cancelled,
		reservationFails: reservationFails,
		complianceBlocks: complianceBlocks,
		sequenceRetries:  sequenceRetries,
		checkoutDuration: checkoutDuration,
	}
}

// IncCreated increments the created counter for the given order source.
func (m *OrderFlowMetrics) IncCreated(source string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncCancelled increments the cancelled counter for the status the order left.
func (m *OrderFlowMetrics) IncCancelled(fromStatus string) {
	if m == nil || m.cancelled == nil {
		return
	}
	m.cancelled.WithLabelValues(normalizeLabel(fromStatus)).Inc()
}

// IncReservationFailure increments the reservation failure counter for a SKU.
func (m *OrderFlowMetrics) IncReservationFailure(sku string) {
	if m == nil || m.reservationFails == nil {
		return
	}
	m.reservationFails.WithLabelValues(normalizeLabel(sku)).Inc()
}

// IncComplianceBlock increments the compliance block counter for a flag.
func (m *OrderFlowMetrics) IncComplianceBlock(flag string) {
	if m == nil || m.complianceBlocks == nil {
		return
	}
	m.complianceBlocks.WithLabelValues(normalizeLabel(flag)).Inc()
}

// IncSequenceRetry increments the order-number retry counter.
func (m *OrderFlowMetrics) IncSequenceRetry() {
	if m == nil || m.sequenceRetries == nil {
		return
	}
	m.sequenceRetries.Inc()
}

// ObserveCheckoutDuration records the duration of an order creation attempt.
func (m *OrderFlowMetrics) ObserveCheckoutDuration(duration time.Duration) {
	if m == nil || m.checkoutDuration == nil {
		return
	}
	m.checkoutDuration.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
