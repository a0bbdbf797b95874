// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// AgentTurns counts conversational turns by the state they ended in.
	AgentTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_turns_total",
			Help: "Conversation turns processed, by resulting conversation state",
		},
		[]string{"state"},
	)

	AgentEscalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_escalations_total",
			Help: "Issues created from conversations, by category",
		},
		[]string{"category"},
	)

	// AgentFallbacks counts every time a model-assisted decision fell back to
	// its deterministic path.
	AgentFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_fallbacks_total",
			Help: "Deterministic fallbacks taken by agent components",
		},
		[]string{"component", "reason"},
	)

	AgentModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_model_call_duration_seconds",
			Help:    "Latency of inference endpoint calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"purpose", "outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landlord_notifications_total",
			Help: "Landlord notifications by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	IssueSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issue_searches_total",
			Help: "Issue index searches by outcome",
		},
		[]string{"outcome"},
	)
)
