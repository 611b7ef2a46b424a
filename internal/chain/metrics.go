package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"attestor/internal/platform/upstream"
)

const outcomeOK = "ok"

type Metrics struct {
	CallsTotal   *prometheus.CounterVec
	RetriesTotal *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_rpc_calls_total",
			Help: "JSON-RPC calls by method and outcome",
		}, []string{"method", "outcome"}),
		RetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_rpc_retries_total",
			Help: "JSON-RPC retries after transient failures",
		}, []string{"method"}),
	}
}

func (m *Metrics) call(method, outcome string) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) retried(method string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(method).Inc()
}

func outcomeFor(err error) string {
	return string(upstream.CategoryOf(err))
}
