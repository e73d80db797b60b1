package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "csai"

// Metrics holds the Prometheus instruments recorded by the analysis pipeline.
type Metrics struct {
	analyses          *prometheus.CounterVec
	escalations       *prometheus.CounterVec
	retrievalOutcomes *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
}

// NewMetrics creates the pipeline instruments and registers them on reg.
// A nil registerer leaves the instruments unregistered, which is what tests
// that only inspect values through testutil want.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "analysis_total",
			Help:      "Inquiries analyzed, by outcome (ok or error kind).",
		}, []string{"outcome"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "escalations_total",
			Help:      "Inquiries routed to a human agent, by reason.",
		}, []string{"reason"}),
		retrievalOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retrieval_outcomes_total",
			Help:      "Corpus retrieval outcomes; separates corpus outages from genuine misses.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.analyses, m.escalations, m.retrievalOutcomes, m.stageDuration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// NopMetrics returns unregistered instruments.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(nil)
	return m
}

// ObserveAnalysis counts one finished analysis.
func (m *Metrics) ObserveAnalysis(outcome string) {
	m.analyses.WithLabelValues(outcome).Inc()
}

// ObserveEscalation counts one escalation decision.
func (m *Metrics) ObserveEscalation(reason string) {
	m.escalations.WithLabelValues(reason).Inc()
}

// ObserveRetrieval counts one retrieval outcome.
func (m *Metrics) ObserveRetrieval(outcome string) {
	m.retrievalOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveStage records the duration of a stage started at start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Analyses exposes the analysis counter for inspection.
func (m *Metrics) Analyses() *prometheus.CounterVec { return m.analyses }

// Escalations exposes the escalation counter for inspection.
func (m *Metrics) Escalations() *prometheus.CounterVec { return m.escalations }

// RetrievalOutcomes exposes the retrieval outcome counter for inspection.
func (m *Metrics) RetrievalOutcomes() *prometheus.CounterVec { return m.retrievalOutcomes }
