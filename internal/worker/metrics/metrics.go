package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvocationsTotal tracks worker invocations by outcome.
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintworker_invocations_total",
			Help: "Total number of worker invocations",
		},
		[]string{"outcome"},
	)

	// InvocationDuration tracks how long one invocation takes.
	InvocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mintworker_invocation_duration_seconds",
			Help:    "Invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PostsScoredTotal tracks scored posts per category.
	PostsScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintworker_posts_scored_total",
			Help: "Total number of posts routed through the scoring engine",
		},
		[]string{"category"},
	)

	// SocialAPIRequests tracks social API calls by endpoint and status.
	SocialAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintworker_social_api_requests_total",
			Help: "Total number of social API requests",
		},
		[]string{"endpoint", "status"},
	)

	// BatchFetchErrors tracks per-batch fetch failures.
	BatchFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mintworker_batch_fetch_errors_total",
			Help: "Total number of failed batch fetches",
		},
	)

	// ActiveBatches tracks how many pagination batches are in flight.
	ActiveBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mintworker_active_batches",
			Help: "Number of active pagination batches",
		},
	)

	// PendingVerifications tracks the size of the verification holding set.
	PendingVerifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mintworker_pending_verifications",
			Help: "Number of posts held for authoritative re-verification",
		},
	)

	// UploadFailures tracks archival upload failures.
	UploadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mintworker_upload_failures_total",
			Help: "Total number of failed archival uploads",
		},
	)

	// DBConnectionPoolUsage tracks postgres pool utilization percentage.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mintworker_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
