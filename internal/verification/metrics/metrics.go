package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for verification operations.
type Metrics struct {
	SessionsStarted   *prometheus.CounterVec
	StageSubmissions  *prometheus.CounterVec
	Decisions         *prometheus.CounterVec
	ManualReviews     *prometheus.CounterVec
	AnalyzerFailures  *prometheus.CounterVec
	StageLatency      *prometheus.HistogramVec
	ScoreDistribution *prometheus.HistogramVec
}

// New registers and returns verification metrics collectors.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_sessions_started_total",
			Help: "Total number of verification sessions started, labeled by mode",
		}, []string{"mode"}),
		StageSubmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_stage_submissions_total",
			Help: "Total number of artifact submissions, labeled by stage",
		}, []string{"stage"}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_decisions_total",
			Help: "Total number of stage decisions committed, labeled by stage and status",
		}, []string{"stage", "status"}),
		ManualReviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_manual_reviews_total",
			Help: "Total number of sessions routed to manual review, labeled by stage",
		}, []string{"stage"}),
		AnalyzerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_analyzer_failures_total",
			Help: "Total number of analyzer call failures, labeled by analyzer",
		}, []string{"analyzer"}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idverify_stage_processing_latency_seconds",
			Help:    "Latency of background stage processing in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		ScoreDistribution: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idverify_analyzer_score",
			Help:    "Distribution of analyzer scores, labeled by analyzer",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		}, []string{"analyzer"}),
	}
}

func (m *Metrics) IncrementSessionsStarted(mode string) {
	m.SessionsStarted.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncrementStageSubmissions(stage string) {
	m.StageSubmissions.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncrementDecisions(stage, status string) {
	m.Decisions.WithLabelValues(stage, status).Inc()
}

func (m *Metrics) IncrementManualReviews(stage string) {
	m.ManualReviews.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncrementAnalyzerFailures(analyzer string) {
	m.AnalyzerFailures.WithLabelValues(analyzer).Inc()
}

func (m *Metrics) ObserveStageLatency(stage string, d time.Duration) {
	m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveScore(analyzer string, score float64) {
	m.ScoreDistribution.WithLabelValues(analyzer).Observe(score)
}
