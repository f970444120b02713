// Package metrics provides Prometheus instrumentation for Uplink.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplink_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uplink_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Connection metrics.
var (
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplink_reconnect_attempts_total",
		Help: "Total number of reconnection attempts scheduled.",
	})

	SessionConnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplink_session_connects_total",
		Help: "Total number of successfully established backend sessions.",
	})

	SessionDisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplink_session_disconnects_total",
		Help: "Total number of backend session drops.",
	})

	SessionConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uplink_session_connected",
		Help: "Whether the backend session is currently established (0 or 1).",
	})
)

// Notification metrics.
var (
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplink_notifications_total",
		Help: "Total number of notifications added, by type.",
	}, []string{"type"})

	NotificationsDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplink_notifications_deduped_total",
		Help: "Total number of notifications collapsed by deduplication.",
	})

	NotificationsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplink_notifications_evicted_total",
		Help: "Total number of notifications evicted on queue overflow.",
	})
)

// Event feed metrics.
var (
	FeedWatchersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uplink_feed_watchers_active",
		Help: "Number of dashboard clients subscribed to the event feed.",
	})

	FeedMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplink_feed_messages_total",
		Help: "Total number of event feed messages sent.",
	})
)
