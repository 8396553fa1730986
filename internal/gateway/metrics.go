package gateway

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "orbit"

// Metrics counts executor outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics builds the executor metrics and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Logical backend requests by operation and where the answer came from",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "Time to produce an answer for a logical request, fallbacks included",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 8, 16},
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

func (m *Metrics) observe(op string, source Source, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, string(source)).Inc()
	m.duration.WithLabelValues(op).Observe(seconds)
}
