package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal tracks pipeline cycles by result
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_rewriter_cycles_total",
			Help: "Total number of pipeline cycles",
		},
		[]string{"result"},
	)

	// ItemsTotal tracks per-item outcomes
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_rewriter_items_total",
			Help: "Total number of candidate items by outcome",
		},
		[]string{"status", "reason"},
	)

	// RewriteLatency tracks generative service call latency
	RewriteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "content_rewriter_rewrite_latency_seconds",
			Help:    "Generative service call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"variant"},
	)

	// RecoverySteps tracks which parse step recovered a response
	RecoverySteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_rewriter_recovery_steps_total",
			Help: "Responses recovered per parse step",
		},
		[]string{"step"},
	)

	// TokensTotal tracks tokens billed by the generative service
	TokensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_rewriter_tokens_total",
			Help: "Total tokens reported by the generative service",
		},
	)

	// ApprovalDecisions tracks reviewer decisions
	ApprovalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_rewriter_approval_decisions_total",
			Help: "Total number of approval decisions",
		},
		[]string{"decision"},
	)

	// PublishTotal tracks handoffs to the publication target
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_rewriter_publish_total",
			Help: "Total number of publication attempts",
		},
		[]string{"result"},
	)

	// ManualApproval is 1 while the publication target is unavailable
	ManualApproval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "content_rewriter_manual_approval",
			Help: "Whether the process is in manual-approval fallback",
		},
	)
)
