package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync reasons, used as metric labels and log fields.
const (
	ReasonStartup     = "startup"
	ReasonPeriodic    = "periodic"
	ReasonOnDemand    = "on_demand"
	ReasonAdmin       = "admin"
	ReasonResubscribe = "resubscribe"
)

type Metrics struct {
	PassesTotal     *prometheus.CounterVec
	ChunksTotal     *prometheus.CounterVec
	BlocksScanned   prometheus.Counter
	EventsIndexed   *prometheus.CounterVec
	CursorBlock     prometheus.Gauge
	PassDuration    *prometheus.HistogramVec
	InFlightSkipped *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PassesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_sync_passes_total",
			Help: "Sync passes by reason and result",
		}, []string{"reason", "result"}),
		ChunksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_sync_chunks_total",
			Help: "Block range chunks scanned by result",
		}, []string{"result"}),
		BlocksScanned: f.NewCounter(prometheus.CounterOpts{
			Name: "attestor_sync_blocks_scanned_total",
			Help: "Blocks covered by successful chunk scans",
		}),
		EventsIndexed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_sync_events_total",
			Help: "Revoked events seen by source and whether they were new",
		}, []string{"source", "result"}),
		CursorBlock: f.NewGauge(prometheus.GaugeOpts{
			Name: "attestor_sync_cursor_block",
			Help: "Highest fully indexed block",
		}),
		PassDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attestor_sync_pass_duration_seconds",
			Help:    "Duration of sync passes",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"reason"}),
		InFlightSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_sync_in_flight_skips_total",
			Help: "Sync triggers skipped because a pass was already running",
		}, []string{"reason"}),
	}
}

func (m *Metrics) pass(reason, result string, seconds float64) {
	if m == nil {
		return
	}
	m.PassesTotal.WithLabelValues(reason, result).Inc()
	m.PassDuration.WithLabelValues(reason).Observe(seconds)
}

func (m *Metrics) chunk(ok bool, blocks uint64) {
	if m == nil {
		return
	}
	if !ok {
		m.ChunksTotal.WithLabelValues("error").Inc()
		return
	}
	m.ChunksTotal.WithLabelValues("ok").Inc()
	m.BlocksScanned.Add(float64(blocks))
}

func (m *Metrics) event(source string, inserted bool) {
	if m == nil {
		return
	}
	result := "duplicate"
	if inserted {
		result = "new"
	}
	m.EventsIndexed.WithLabelValues(source, result).Inc()
}

func (m *Metrics) cursor(block uint64) {
	if m == nil {
		return
	}
	m.CursorBlock.Set(float64(block))
}

func (m *Metrics) skipped(reason string) {
	if m == nil {
		return
	}
	m.InFlightSkipped.WithLabelValues(reason).Inc()
}
