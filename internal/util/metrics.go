package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_intents_applied_total",
		Help: "Total number of intents applied to the application store",
	}, []string{"kind"})

	IntentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_intents_rejected_total",
		Help: "Total number of intents rejected by the application store",
	}, []string{"kind", "reason"})

	IntentApplyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_intent_apply_latency_seconds",
		Help:    "Latency of applying an intent, persistence included",
		Buckets: prometheus.DefBuckets,
	})

	SnapshotPersistLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_snapshot_persist_latency_seconds",
		Help:    "Latency of writing the snapshot to its slot",
		Buckets: prometheus.DefBuckets,
	})

	SnapshotPersistFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_snapshot_persist_failed_total",
		Help: "Total number of failed snapshot writes",
	}, []string{"reason"})

	SnapshotRestoreTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_snapshot_restore_total",
		Help: "Snapshot restores at startup by source",
	}, []string{"source"})

	SnapshotCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_snapshot_cache_total",
		Help: "Snapshot cache lookups by result",
	}, []string{"result"})

	IntentCommandsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_intent_commands_consumed_total",
		Help: "Intent commands consumed from the message bus by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
