// Package metrics exposes Prometheus collectors for the booking engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors recorded by the service layer.  A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	roomsReserved *prometheus.CounterVec
	roomsRestored *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotel",
			Name:      "booking_operations_total",
			Help:      "Booking engine operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotel",
			Name:      "booking_operation_duration_seconds",
			Help:      "Latency of booking engine operations, including lock waits.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		roomsReserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotel",
			Name:      "inventory_room_nights_reserved_total",
			Help:      "Room-nights deducted from inventory.",
		}, []string{"room_type_id"}),
		roomsRestored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotel",
			Name:      "inventory_room_nights_restored_total",
			Help:      "Room-nights credited back to inventory.",
		}, []string{"room_type_id"}),
	}
	reg.MustRegister(m.operations, m.duration, m.roomsReserved, m.roomsRestored)
	return m
}

// Observe records one finished operation.  outcome is "ok" or an error kind.
func (m *Metrics) Observe(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Reserved adds room-nights taken from a room type.
func (m *Metrics) Reserved(roomTypeID string, roomNights int) {
	if m == nil {
		return
	}
	m.roomsReserved.WithLabelValues(roomTypeID).Add(float64(roomNights))
}

// Restored adds room-nights given back to a room type.
func (m *Metrics) Restored(roomTypeID string, roomNights int) {
	if m == nil {
		return
	}
	m.roomsRestored.WithLabelValues(roomTypeID).Add(float64(roomNights))
}
