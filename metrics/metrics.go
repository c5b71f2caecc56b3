// Package metrics exposes Prometheus instrumentation for Guardian.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Incident run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_runs_total",
			Help: "Total number of incident runs completed",
		},
		[]string{"scenario", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_run_duration_seconds",
			Help:    "Incident run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4min
		},
		[]string{"scenario"},
	)

	StageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_stage_transitions_total",
			Help: "Total number of workflow stage transitions",
		},
		[]string{"from", "to"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_stage_duration_seconds",
			Help:    "Workflow stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"stage"},
	)

	ToolRoundsExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_tool_rounds_exhausted_total",
			Help: "Runs where the diagnosis loop hit its tool round budget",
		},
	)

	// Tool metrics
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_tool_calls_total",
			Help: "Total number of diagnostic tool executions",
		},
		[]string{"tool", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_tool_call_duration_seconds",
			Help:    "Diagnostic tool execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
		},
		[]string{"tool"},
	)

	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"provider", "model"},
	)
)
