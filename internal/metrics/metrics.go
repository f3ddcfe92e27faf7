package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// HubActiveFamilies tracks the number of families with at least one connected client.
	HubActiveFamilies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_families",
			Help: "Number of families with at least one connected WebSocket client",
		},
	)

	// HubConnectedClients tracks total connected WebSocket clients across all families.
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Total number of connected WebSocket clients across all families",
		},
	)

	// HubSlowClientsEvicted counts clients disconnected because their send buffer filled.
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Total clients evicted because their send buffer was full",
		},
	)

	// HubBroadcastsTotal counts broadcast frames fanned out by family channel.
	HubBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Total frames broadcast to connected clients",
		},
	)

	// WebSocketPingFailures counts failed keepalive pings.
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures (client likely disconnected)",
		},
	)
)

// Live feed client metrics
var (
	// LiveFeedState tracks the channel state (0=closed, 1=connecting, 2=open, 3=reconnecting).
	LiveFeedState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livefeed_channel_state",
			Help: "Live feed channel state (0=closed, 1=connecting, 2=open, 3=reconnecting)",
		},
	)

	// LiveFeedSubscribers tracks the number of registered feed subscribers.
	LiveFeedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livefeed_subscribers",
			Help: "Number of registered live feed subscribers",
		},
	)

	// LiveFeedReconnectsTotal counts reconnect attempts after transport loss.
	LiveFeedReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livefeed_reconnects_total",
			Help: "Total reconnect attempts after transport loss",
		},
	)

	// LiveFeedMalformedFrames counts inbound frames dropped because they failed to decode.
	LiveFeedMalformedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livefeed_malformed_frames_total",
			Help: "Total inbound frames dropped because they failed to decode",
		},
	)

	// LiveFeedHandlerPanics counts subscriber callbacks that panicked during fan-out.
	LiveFeedHandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livefeed_handler_panics_total",
			Help: "Total subscriber callbacks that panicked during fan-out",
		},
	)
)

// Connection limit metrics
var (
	// ConnectionsRejectedTotal counts connections rejected by limiters, by reason.
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connections_rejected_total",
			Help: "Total connections rejected by limiters",
		},
		[]string{"reason"},
	)
)

// Circuit breaker metrics
var (
	// CircuitBreakerStateChanges tracks circuit breaker state transitions.
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)
