package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ClaimsTotal   *prometheus.CounterVec
	ClaimDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClaimsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_attestations_total",
			Help: "Attestation claims by outcome and error kind",
		}, []string{"outcome", "kind"}),
		ClaimDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attestor_attestation_duration_seconds",
			Help:    "End to end claim latency by outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observe(outcome, kind string, seconds float64) {
	if m == nil {
		return
	}
	m.ClaimsTotal.WithLabelValues(outcome, kind).Inc()
	m.ClaimDuration.WithLabelValues(outcome).Observe(seconds)
}
