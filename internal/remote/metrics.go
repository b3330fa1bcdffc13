package remote

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded on the request counter.
const (
	outcomeOK           = "ok"
	outcomeRejected     = "rejected"
	outcomeUnauthorized = "unauthorized"
	outcomeUnreachable  = "unreachable"
)

// Metrics instruments calls to the lab service.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics creates the client collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcanvas",
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Requests sent to the lab service, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "netcanvas",
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Round-trip latency of lab service requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency)
	}
	return m
}

func (m *Metrics) observe(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.latency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
