// Package metrics holds the Prometheus collectors of the coordinator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Answer events seen by the host, by ingestion outcome",
		},
		[]string{"outcome"},
	)

	PhaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_phase_transitions_total",
			Help: "Session phase transitions, by target phase",
		},
		[]string{"to"},
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_flush_duration_seconds",
			Help:    "Duration of answer batch commits",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	FlushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_flush_failures_total",
			Help: "Answer batch commits that failed and left the buffer intact",
		},
	)

	PendingAnswers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_pending_answers",
			Help: "Answers buffered for the active question",
		},
	)
)

// Register adds the coordinator collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(AnswersTotal, PhaseTransitions, FlushDuration, FlushFailures, PendingAnswers)
}

// NewRegistry returns a registry with the coordinator, Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	Register(reg)
	return reg
}
