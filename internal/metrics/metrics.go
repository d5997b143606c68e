// Package metrics defines Prometheus collectors for the session server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket metrics
var (
	// WebSocketConnectionsActive tracks currently attached clients across all sessions
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Currently attached WebSocket clients across all sessions",
		},
	)

	// WebSocketMessagesTotal tracks inbound WebSocket messages by type
	WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_total",
			Help: "Inbound WebSocket messages by message type",
		},
		[]string{"type"},
	)

	// WebSocketBroadcastsTotal tracks fan-out broadcasts per session message
	WebSocketBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_broadcasts_total",
			Help: "Total broadcast fan-outs performed",
		},
	)

	// WebSocketDroppedClients tracks clients evicted after a failed or slow send
	WebSocketDroppedClients = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_dropped_clients_total",
			Help: "Clients evicted from a session after a failed or slow send",
		},
	)

	// WebSocketParseErrors tracks malformed inbound frames (dropped, connection kept)
	WebSocketParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_parse_errors_total",
			Help: "Malformed WebSocket frames dropped",
		},
	)
)

// Blob store metrics
var (
	// StorageOpsTotal tracks blob store operations by operation and status
	StorageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Blob store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// StorageOpDuration tracks blob store operation latency in seconds
	StorageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Blob store operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// AI pipeline metrics
var (
	// AIPipelineRunsTotal tracks summarization runs by outcome
	AIPipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_pipeline_runs_total",
			Help: "Summarization pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	// AIPipelineDuration tracks end-to-end summarization latency in seconds
	AIPipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_pipeline_duration_seconds",
			Help:    "End-to-end summarization pipeline duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// HTTP metrics
var (
	// HTTPErrorsTotal tracks HTTP errors by type
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"type"},
	)

	// SessionsActive tracks coordinators resident in the registry
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Coordinator instances resident in the session registry",
		},
	)
)
