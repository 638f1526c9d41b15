// Package metrics exposes Prometheus instruments for the booking flows.
// A nil *BookingMetrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BookingMetrics struct {
	attempts             *prometheus.CounterVec
	availabilityRequests *prometheus.CounterVec
	availabilityLatency  prometheus.Histogram
	commitLatency        prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		availabilityRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "availability",
			Name:      "requests_total",
			Help:      "Availability computations by result",
		}, []string{"status"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Subsystem: "availability",
			Name:      "duration_seconds",
			Help:      "Time spent computing availability",
			Buckets:   prometheus.DefBuckets,
		}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Subsystem: "booking",
			Name:      "commit_duration_seconds",
			Help:      "Time spent in the atomic check-and-insert",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attempts, m.availabilityRequests, m.availabilityLatency, m.commitLatency)
	return m
}

// ObserveBooking counts one Create call. outcome is "created" or an error kind.
func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCommit(d time.Duration) {
	if m == nil {
		return
	}
	m.commitLatency.Observe(d.Seconds())
}

func (m *BookingMetrics) ObserveAvailability(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.availabilityRequests.WithLabelValues(status).Inc()
	m.availabilityLatency.Observe(d.Seconds())
}
