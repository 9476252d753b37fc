package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Decision outcomes by risk tier and verification level
	DecisionOutcome *prometheus.CounterVec

	// Distribution of overall risk scores
	OverallScore prometheus.Histogram

	// Overall evaluation latency, evidence gathering included
	EvaluateLatency prometheus.Histogram

	// Attestation verifications by result
	AttestationChecks *prometheus.CounterVec

	// Report cache lookups by result
	CacheLookups *prometheus.CounterVec
}

// New creates the decision metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_decision_outcomes_total",
			Help: "Total decisions by risk level and verification level",
		}, []string{"risk_level", "verification_level"}),

		OverallScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "verigate_decision_overall_score",
			Help:    "Overall risk score of evaluated decisions",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 75, 80, 90, 100},
		}),

		EvaluateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "verigate_decision_evaluate_duration_seconds",
			Help:    "Duration of full decision evaluation including evidence gathering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		AttestationChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_attestation_verifications_total",
			Help: "Attestation verifications by result",
		}, []string{"result"}), // result: "valid", "rejected"

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_report_cache_lookups_total",
			Help: "Report cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(riskLevel, verificationLevel string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(riskLevel, verificationLevel).Inc()
	}
}

// ObserveScore records an overall score.
func (m *Metrics) ObserveScore(overall float64) {
	if m != nil {
		m.OverallScore.Observe(overall)
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementAttestation records an attestation verification result.
func (m *Metrics) IncrementAttestation(result string) {
	if m != nil {
		m.AttestationChecks.WithLabelValues(result).Inc()
	}
}

// IncrementCacheLookup records a cache hit, miss or error.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
