package assembler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for evidence gathering.
type Metrics struct {
	// Collect latency by provider, type and outcome
	CollectLatency *prometheus.HistogramVec

	// Optional evidence dropped because its provider failed
	Degraded *prometheus.CounterVec
}

// NewMetrics registers the assembler metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CollectLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verigate_evidence_collect_duration_seconds",
			Help:    "Duration of evidence collection by provider",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"provider", "type", "outcome"}), // outcome: "ok", "error"

		Degraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_evidence_degraded_total",
			Help: "Optional evidence sections dropped after a provider failure",
		}, []string{"type", "category"}),
	}
}

func (m *Metrics) observeCollect(provider, kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CollectLatency.WithLabelValues(provider, kind, outcome).Observe(d.Seconds())
}

func (m *Metrics) incDegraded(kind, category string) {
	if m != nil {
		m.Degraded.WithLabelValues(kind, category).Inc()
	}
}
