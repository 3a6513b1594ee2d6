package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Polling metrics
	PollsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchgpt_polls_issued_total",
			Help: "Total number of status polls issued",
		},
	)

	PollSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchgpt_poll_sessions_total",
			Help: "Total number of polling sessions by outcome",
		},
		[]string{"outcome"},
	)

	// Aggregation metrics
	ResourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchgpt_resource_fetches_total",
			Help: "Total number of web resource fetches by status",
		},
		[]string{"status"},
	)

	ResourcesAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchgpt_resources_admitted_total",
			Help: "Total number of resources admitted into subtopic buckets",
		},
	)

	ResourcesFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchgpt_resources_filtered_total",
			Help: "Total number of resources dropped by domain or bucket caps",
		},
	)

	// Summary metrics
	SummaryFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchgpt_summary_fetches_total",
			Help: "Total number of per-URL summary fetches by status",
		},
		[]string{"status"},
	)

	SummariesLoading = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "researchgpt_summaries_loading",
			Help: "Number of summary fetches currently in flight",
		},
	)

	// Broadcast metrics
	SnapshotsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchgpt_snapshots_delivered_total",
			Help: "Total number of aggregated snapshots delivered to consumers",
		},
	)

	SnapshotsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchgpt_snapshots_suppressed_total",
			Help: "Total number of snapshots suppressed as duplicates",
		},
	)

	// Session metrics
	StaleCallbacksDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchgpt_stale_callbacks_discarded_total",
			Help: "Total number of async completions discarded on session token mismatch",
		},
	)

	ReportsAssembled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchgpt_reports_assembled_total",
			Help: "Total number of reports assembled",
		},
	)
)
