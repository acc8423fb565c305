package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvoicesGenerated counts invoices persisted by the generator, by type.
	InvoicesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carenet_invoices_generated_total",
			Help: "Total number of invoices generated",
		},
		[]string{"type"},
	)

	// InvoicesReclassified counts PENDING invoices flipped to OVERDUE by the sweep.
	InvoicesReclassified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carenet_invoices_reclassified_total",
			Help: "Total number of invoices reclassified to overdue",
		},
	)

	// LockoutsOpened counts account lockouts opened, by reason.
	LockoutsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carenet_lockouts_opened_total",
			Help: "Total number of account lockouts opened",
		},
		[]string{"reason"},
	)

	// SweepFailures counts per-invoice failures during the overdue sweep. The
	// sweep has no synchronous caller, so alerting hangs off this counter.
	SweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carenet_sweep_failures_total",
			Help: "Total number of per-invoice failures during the overdue sweep",
		},
	)

	// FeatureGuardDecisions counts request-time guard outcomes (allowed|denied|fail_open|fail_closed).
	FeatureGuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carenet_feature_guard_decisions_total",
			Help: "Total number of feature guard decisions",
		},
		[]string{"feature", "result"},
	)

	// EscrowTransitions counts escrow state transitions (held|released|refunded).
	EscrowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carenet_escrow_transitions_total",
			Help: "Total number of escrow state transitions",
		},
		[]string{"state"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carenet_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
