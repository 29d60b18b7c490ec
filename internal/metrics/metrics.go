package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime Registry Metrics
var (
	// RealtimeConnectedClients tracks the number of currently connected WebSocket clients
	RealtimeConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected_clients",
			Help: "Number of currently connected WebSocket clients",
		},
	)

	// RealtimeActiveTopics tracks the number of topics with at least one subscriber, by class
	RealtimeActiveTopics = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_active_topics",
			Help: "Number of topics with at least one subscriber by topic class",
		},
		[]string{"class"},
	)

	// RealtimeBroadcastsTotal tracks broadcast fan-outs by scope
	RealtimeBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_broadcasts_total",
			Help: "Total broadcast fan-outs by scope (general/court/game/tournament)",
		},
		[]string{"scope"},
	)

	// RealtimeMessagesSentTotal tracks messages successfully handed to a client writer
	RealtimeMessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_sent_total",
			Help: "Total messages enqueued to client writers",
		},
	)

	// RealtimeSendFailuresTotal tracks per-recipient delivery failures
	RealtimeSendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_send_failures_total",
			Help: "Total per-recipient delivery failures (dead or saturated client)",
		},
	)

	// RealtimeCommandChannelDepth tracks registry command channel depth
	RealtimeCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_command_channel_depth",
			Help: "Current depth of the registry command channel",
		},
	)

	// RealtimeRegistryPanicsTotal tracks recovered panics in the registry goroutine
	RealtimeRegistryPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_registry_panics_total",
			Help: "Total panics recovered in the registry goroutine",
		},
	)
)

// WebSocket Boundary Metrics
var (
	// WebSocketConnectionsTotal tracks accepted WebSocket connections
	WebSocketConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total accepted WebSocket connections",
		},
	)

	// WebSocketConnectionsRejected tracks rejected connection attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total rejected WebSocket connection attempts by limit reason",
		},
		[]string{"reason"},
	)

	// WebSocketMessageSendDuration tracks WebSocket write latency
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message write duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// WebSocketMalformedFramesTotal tracks malformed inbound frames
	WebSocketMalformedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_malformed_frames_total",
			Help: "Total malformed inbound control frames",
		},
	)
)
