package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Bookings      *prometheus.CounterVec
	Cancellations *prometheus.CounterVec
	ChatQuestions *prometheus.CounterVec
	HealthEntries prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		Cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Appointment cancellations by acting role",
		}, []string{"role"}),
		ChatQuestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_questions_total",
			Help:      "Chat questions answered, split by triage flag",
		}, []string{"serious"}),
		HealthEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_entries_total",
			Help:      "Daily health entries recorded",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		m.Bookings,
		m.Cancellations,
		m.ChatQuestions,
		m.HealthEntries,
		m.HTTPRequests,
		m.HTTPLatency,
	)
	return m
}

func (m *Metrics) BookingOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Cancelled(role string) {
	if m == nil {
		return
	}
	m.Cancellations.WithLabelValues(role).Inc()
}

func (m *Metrics) ChatAnswered(serious bool) {
	if m == nil {
		return
	}
	label := "false"
	if serious {
		label = "true"
	}
	m.ChatQuestions.WithLabelValues(label).Inc()
}

func (m *Metrics) HealthEntryRecorded() {
	if m == nil {
		return
	}
	m.HealthEntries.Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.HTTPLatency.WithLabelValues(route, method).Observe(seconds)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
