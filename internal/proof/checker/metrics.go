package checker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal   *prometheus.CounterVec
	CheckDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_proof_checks_total",
			Help: "Proof checks by the tier that decided them",
		}, []string{"tier"}),
		CheckDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attestor_proof_check_duration_seconds",
			Help:    "Proof check latency by deciding tier",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 15},
		}, []string{"tier"}),
	}
}

func (m *Metrics) observe(tier string, seconds float64) {
	if m == nil || tier == "" {
		return
	}
	m.ChecksTotal.WithLabelValues(tier).Inc()
	m.CheckDuration.WithLabelValues(tier).Observe(seconds)
}
