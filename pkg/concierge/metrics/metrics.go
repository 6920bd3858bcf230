// Package metrics provides Prometheus metrics for the wager pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// PipelineMetrics collects and exposes wager pipeline Prometheus metrics.
type PipelineMetrics struct {
	registry *prometheus.Registry

	// Extraction metrics
	ExtractionsTotal     *prometheus.CounterVec
	ExtractionLatency    *prometheus.HistogramVec
	ExtractionConfidence *prometheus.HistogramVec
	LLMErrors            *prometheus.CounterVec

	// Dialogue metrics
	QuestionsAsked  *prometheus.CounterVec
	AnswersTotal    *prometheus.CounterVec
	RetriesExceeded *prometheus.CounterVec
	ActiveSessions  *prometheus.GaugeVec

	// Risk metrics
	RiskAssessments *prometheus.CounterVec
	RiskBlocks      *prometheus.CounterVec

	// Contest metrics
	ContestsResolved *prometheus.CounterVec

	// Commit metrics
	CommitsTotal   *prometheus.CounterVec
	CommitDuration *prometheus.HistogramVec
	StageLatency   *prometheus.HistogramVec
	WagerAmount    *prometheus.HistogramVec

	// Streaming metrics
	StreamClients *prometheus.GaugeVec
}

// NewPipelineMetrics creates a new pipeline metrics collector.
func NewPipelineMetrics() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	pm := &PipelineMetrics{
		registry: registry,

		// Extraction metrics
		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daredevil_extractions_total",
				Help: "Total number of intent extractions",
			},
			[]string{"source", "status"},
		),
		ExtractionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "daredevil_extraction_latency_seconds",
				Help:    "Intent extraction latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"source"},
		),
		ExtractionConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "daredevil_extraction_confidence",
				Help:    "Extraction confidence (0-1)",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0, 0.1, ..., 1.0
			},
			[]string{"source"},
		),
		LLMErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daredevil_llm_errors_total",
				Help: "Total number of LLM errors",
			},
			[]string{"provider", "error_type"},
		),

		// Dialogue metrics
		QuestionsAsked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daredevil_questions_asked_total",
				Help: "Guiding questions presented, by question ID",
			},
			[]string{"question"},
		),
		AnswersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daredevil_answers_total",
				Help: "Answers applied to sessions, by question ID and outcome",
			},
			[]string{"question", "outcome"},
		),
		RetriesExceeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daredevil_retries_exceeded_total",
				Help: "Times a question exhausted its retry budget",
			},
			[]string{"question"},
		),
		ActiveSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "daredevil_active_sessions",
				Help: "Current number of open wager sessions",
			},
			[]string{},
		),

		// Risk metrics
		RiskAssessments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daredevil_risk_assessments_total",
				Help: "Risk assessments performed, by tier",
			},
			[]string{"tier"},
		),
		RiskBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daredevil_risk_blocks_total",
				Help: "Assessments that blocked auto-proceed, by tier",
			},
			[]string{"tier"},
		),

		// Contest metrics
		ContestsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daredevil_contests_resolved_total",
				Help: "Contest resolutions, by source (catalog or synthesized)",
			},
			[]string{"source"},
		),

		// Commit metrics
		CommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daredevil_commits_total",
				Help: "Commit attempts, by terminal status",
			},
			[]string{"status"},
		),
		CommitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "daredevil_commit_duration_seconds",
				Help:    "Total commit pipeline duration",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~400s
			},
			[]string{},
		),
		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "daredevil_stage_latency_seconds",
				Help:    "Individual commit stage latency",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"stage"},
		),
		WagerAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "daredevil_wager_amount",
				Help:    "Committed wager stake in display units",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"currency"},
		),

		// Streaming metrics
		StreamClients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "daredevil_stream_clients",
				Help: "Connected WebSocket clients",
			},
			[]string{},
		),
	}

	// Register all metrics
	pm.registerAll()

	return pm
}

func (pm *PipelineMetrics) registerAll() {
	pm.registry.MustRegister(
		pm.ExtractionsTotal,
		pm.ExtractionLatency,
		pm.ExtractionConfidence,
		pm.LLMErrors,
		pm.QuestionsAsked,
		pm.AnswersTotal,
		pm.RetriesExceeded,
		pm.ActiveSessions,
		pm.RiskAssessments,
		pm.RiskBlocks,
		pm.ContestsResolved,
		pm.CommitsTotal,
		pm.CommitDuration,
		pm.StageLatency,
		pm.WagerAmount,
		pm.StreamClients,
	)
}

// Registry returns the prometheus registry.
func (pm *PipelineMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// --- Helper methods for recording metrics ---

// RecordExtraction records one extraction attempt.
func (pm *PipelineMetrics) RecordExtraction(source, status string, latencySec, confidence float64) {
	pm.ExtractionsTotal.WithLabelValues(source, status).Inc()
	if latencySec > 0 {
		pm.ExtractionLatency.WithLabelValues(source).Observe(latencySec)
	}
	if confidence >= 0 {
		pm.ExtractionConfidence.WithLabelValues(source).Observe(confidence)
	}
}

// RecordLLMError records an LLM error.
func (pm *PipelineMetrics) RecordLLMError(provider, errorType string) {
	pm.LLMErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordQuestion records a question being presented.
func (pm *PipelineMetrics) RecordQuestion(question string) {
	pm.QuestionsAsked.WithLabelValues(question).Inc()
}

// RecordAnswer records an answer outcome.
func (pm *PipelineMetrics) RecordAnswer(question, outcome string) {
	pm.AnswersTotal.WithLabelValues(question, outcome).Inc()
}

// RecordRetriesExceeded records a question exhausting its retry budget.
func (pm *PipelineMetrics) RecordRetriesExceeded(question string) {
	pm.RetriesExceeded.WithLabelValues(question).Inc()
}

// SetActiveSessions updates the open session gauge.
func (pm *PipelineMetrics) SetActiveSessions(count int) {
	pm.ActiveSessions.WithLabelValues().Set(float64(count))
}

// RecordRiskAssessment records one assessment and whether it blocked.
func (pm *PipelineMetrics) RecordRiskAssessment(tier string, blocked bool) {
	pm.RiskAssessments.WithLabelValues(tier).Inc()
	if blocked {
		pm.RiskBlocks.WithLabelValues(tier).Inc()
	}
}

// RecordContest records a contest resolution.
func (pm *PipelineMetrics) RecordContest(source string) {
	pm.ContestsResolved.WithLabelValues(source).Inc()
}

// RecordCommit records a commit attempt's terminal status.
func (pm *PipelineMetrics) RecordCommit(status string, durationSec float64) {
	pm.CommitsTotal.WithLabelValues(status).Inc()
	if durationSec > 0 {
		pm.CommitDuration.WithLabelValues().Observe(durationSec)
	}
}

// RecordStage records a commit stage execution.
func (pm *PipelineMetrics) RecordStage(stage string, durationSec float64) {
	pm.StageLatency.WithLabelValues(stage).Observe(durationSec)
}

// ObserveWagerAmount records the stake of a committed wager.
func (pm *PipelineMetrics) ObserveWagerAmount(currency string, amount float64) {
	pm.WagerAmount.WithLabelValues(currency).Observe(amount)
}

// SetStreamClients updates the connected client gauge.
func (pm *PipelineMetrics) SetStreamClients(count int) {
	pm.StreamClients.WithLabelValues().Set(float64(count))
}

// --- Decimal helpers ---

// DecimalToFloat64 safely converts decimal.Decimal to float64 for metrics.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Global instance for convenience
var defaultMetrics *PipelineMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *PipelineMetrics {
	once.Do(func() {
		defaultMetrics = NewPipelineMetrics()
	})
	return defaultMetrics
}
