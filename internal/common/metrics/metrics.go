// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts notification submissions by channel and outcome
	// (accepted, denied, rejected).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_submissions_total",
			Help: "Total number of notification submissions",
		},
		[]string{"channel", "outcome"},
	)

	// DispatchAttemptsTotal counts delivery attempts by channel, provider and
	// resulting status.
	DispatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_attempts_total",
			Help: "Total number of dispatch attempts",
		},
		[]string{"channel", "provider", "status"},
	)

	// DispatchDuration observes how long a single dispatch attempt takes.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_dispatch_duration_seconds",
			Help:    "Dispatch attempt duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "provider"},
	)

	// SweepBatchSize observes how many records each scheduler sweep claimed.
	SweepBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_sweep_batch_size",
			Help:    "Number of records claimed per scheduler sweep",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"kind"},
	)

	// WebhookEventsTotal counts provider webhook events by provider and event type.
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_webhook_events_total",
			Help: "Total number of provider webhook events processed",
		},
		[]string{"provider", "event"},
	)

	// TemplateCacheHits counts template cache hits and misses.
	TemplateCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_template_cache_total",
			Help: "Template cache lookups by result",
		},
		[]string{"result"},
	)
)
