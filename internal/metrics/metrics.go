package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carebot_http_requests_total",
			Help: "Total HTTP requests served by the local API",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carebot_http_request_duration_seconds",
			Help:    "Local API request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Dispatch metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carebot_messages_sent_total",
			Help: "User messages accepted by the dispatcher",
		},
		[]string{"path"}, // "online" or "offline"
	)

	AssistantReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carebot_assistant_replies_total",
			Help: "Assistant messages appended after a remote call",
		},
		[]string{"status"}, // "delivered" or "failed"
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carebot_offline_queue_depth",
			Help: "Messages waiting for connectivity",
		},
	)

	QueueDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carebot_offline_queue_drained_total",
			Help: "Queued messages replayed after connectivity returned",
		},
	)

	// Connectivity metrics
	ConnectivityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carebot_connectivity_transitions_total",
			Help: "Connectivity transitions observed",
		},
		[]string{"state"}, // "online" or "offline"
	)

	// Infrastructure metrics
	AssistantLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carebot_assistant_latency_seconds",
			Help:    "Remote assistant round-trip latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carebot_store_latency_seconds",
			Help:    "Durable store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"backend", "op"},
	)
)
