package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus instruments for the reservation engine.
type Metrics struct {
	// Reservations counts reserve attempts by outcome (success or reason).
	Reservations *prometheus.CounterVec

	// Extensions counts extension attempts by outcome.
	Extensions *prometheus.CounterVec

	// Cancellations counts cancel attempts by outcome.
	Cancellations *prometheus.CounterVec

	// Conversions counts conversion attempts by outcome.
	Conversions *prometheus.CounterVec

	// Cleaned counts reservations removed by the janitor.
	Cleaned prometheus.Counter

	// StoreErrors counts failed store calls by operation.
	StoreErrors *prometheus.CounterVec

	// OperationDuration is the latency of engine operations.
	OperationDuration *prometheus.HistogramVec

	// HTTPRequests counts API requests by route.
	HTTPRequests *prometheus.CounterVec
}

// New creates the instruments and registers them with reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Reservations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservations_total",
				Help:      "Slot reservation attempts by outcome.",
			},
			[]string{"outcome"},
		),
		Extensions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extensions_total",
				Help:      "Reservation extension attempts by outcome.",
			},
			[]string{"outcome"},
		),
		Cancellations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancellations_total",
				Help:      "Reservation cancellations by outcome.",
			},
			[]string{"outcome"},
		),
		Conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Reservation to booking conversions by outcome.",
			},
			[]string{"outcome"},
		),
		Cleaned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "janitor_cleaned_total",
				Help:      "Expired reservations removed by the janitor.",
			},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Failed key-value store calls by operation.",
			},
			[]string{"op"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Latency of reservation engine operations.",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"op"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route.",
			},
			[]string{"route"},
		),
	}
}

// outcome maps an empty reason to "success".
func outcome(reason string) string {
	if reason == "" {
		return "success"
	}
	return reason
}

func (m *Metrics) IncReservation(reason string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(outcome(reason)).Inc()
}

func (m *Metrics) IncExtension(reason string) {
	if m == nil {
		return
	}
	m.Extensions.WithLabelValues(outcome(reason)).Inc()
}

func (m *Metrics) IncCancellation(reason string) {
	if m == nil {
		return
	}
	m.Cancellations.WithLabelValues(outcome(reason)).Inc()
}

func (m *Metrics) IncConversion(reason string) {
	if m == nil {
		return
	}
	m.Conversions.WithLabelValues(outcome(reason)).Inc()
}

func (m *Metrics) AddCleaned(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.Cleaned.Add(float64(count))
}

func (m *Metrics) IncStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

// ObserveDuration records an operation latency in seconds.
func (m *Metrics) ObserveDuration(op string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) IncHTTP(route string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route).Inc()
}
