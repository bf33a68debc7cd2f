// Package metrics exposes Prometheus counters for the booking lifecycle.
// All collectors live on a dedicated registry so tests can build as many
// instances as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "showtime_booking"

// Booking groups the counters recorded by the coordinator and sweeper.
// A nil *Booking is valid and records nothing.
type Booking struct {
	holdsAcquired     prometheus.Counter
	holdsRejected     prometheus.Counter
	degradedSelects   prometheus.Counter
	invalidSelections prometheus.Counter
	seatConflicts     prometheus.Counter
	bookings          *prometheus.CounterVec
	sweeps            prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Booking {
	m := &Booking{
		holdsAcquired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "holds_acquired_total",
			Help: "Seat holds written to the availability cache.",
		}),
		holdsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "holds_rejected_total",
			Help: "Select requests rejected because a seat was held or sold.",
		}),
		degradedSelects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "degraded_selects_total",
			Help: "Select requests served from the persistent view while the cache was unavailable.",
		}),
		invalidSelections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invalid_selections_total",
			Help: "Booking requests naming seats outside the session selection.",
		}),
		seatConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "seat_conflicts_total",
			Help: "Confirmations that lost the seat to a concurrent booking.",
		}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bookings_total",
			Help: "Bookings by lifecycle status reached.",
		}, []string{"status"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sweeps_total",
			Help: "Expiry sweeps run.",
		}),
	}
	reg.MustRegister(
		m.holdsAcquired, m.holdsRejected, m.degradedSelects,
		m.invalidSelections, m.seatConflicts, m.bookings, m.sweeps,
	)
	return m
}

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (m *Booking) HoldsAcquired(n int) {
	if m != nil {
		m.holdsAcquired.Add(float64(n))
	}
}

func (m *Booking) HoldRejected() {
	if m != nil {
		m.holdsRejected.Inc()
	}
}

func (m *Booking) DegradedSelect() {
	if m != nil {
		m.degradedSelects.Inc()
	}
}

func (m *Booking) InvalidSelection() {
	if m != nil {
		m.invalidSelections.Inc()
	}
}

func (m *Booking) SeatConflict() {
	if m != nil {
		m.seatConflicts.Inc()
	}
}

// Status counts a booking reaching status.
func (m *Booking) Status(status string) {
	if m != nil {
		m.bookings.WithLabelValues(status).Inc()
	}
}

func (m *Booking) Sweep() {
	if m != nil {
		m.sweeps.Inc()
	}
}
