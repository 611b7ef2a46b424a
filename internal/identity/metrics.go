package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes.
const (
	OutcomeFound       = "found"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCanceled    = "canceled"
)

type Metrics struct {
	LookupsTotal   *prometheus.CounterVec
	LookupDuration prometheus.Histogram
	RetriesTotal   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LookupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_identity_lookups_total",
			Help: "Identity directory lookups by outcome",
		}, []string{"outcome"}),
		LookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "attestor_identity_lookup_duration_seconds",
			Help:    "Identity resolution latency including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30},
		}),
		RetriesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "attestor_identity_retries_total",
			Help: "Identity directory retries after transient failures",
		}),
	}
}

func (m *Metrics) observe(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(outcome).Inc()
	m.LookupDuration.Observe(seconds)
}

func (m *Metrics) retried() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}
