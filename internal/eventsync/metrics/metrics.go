package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CalendarOperations tracks calendar calls per operation and result
	CalendarOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_calendar_operations_total",
			Help: "Total number of calendar operations",
		},
		[]string{"operation", "result"},
	)

	// CalendarErrors tracks recorded failures per operation and error kind
	CalendarErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_calendar_errors_total",
			Help: "Total number of recorded calendar operation failures",
		},
		[]string{"operation", "kind"},
	)

	// CalendarLatency tracks calendar call latency
	CalendarLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calsync_calendar_latency_seconds",
			Help:    "Calendar call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RetryAttempts tracks retry outcomes (success, failed, exhausted)
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_retry_attempts_total",
			Help: "Total number of retry attempts by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// RetryQueueSize tracks the number of pending retries
	RetryQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calsync_retry_queue_size",
			Help: "Number of calendar operations waiting for retry",
		},
	)

	// CalendarConnected is 1 while the calendar client is connected
	CalendarConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calsync_calendar_connected",
			Help: "Whether the calendar client is connected (1) or not (0)",
		},
	)
)
