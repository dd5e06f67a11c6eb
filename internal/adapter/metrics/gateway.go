package metrics

import "github.com/prometheus/client_golang/prometheus"

// GatewayMetrics holds the connection, fan-out and heartbeat collectors.
type GatewayMetrics struct {
	ActiveConnections   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	Disconnects         *prometheus.CounterVec
	MessagesProcessed   *prometheus.CounterVec
	ProtocolErrors      *prometheus.CounterVec
	Broadcasts          *prometheus.CounterVec
	Deliveries          prometheus.Counter
	SlowConsumers       prometheus.Counter
	HeartbeatReaped     prometheus.Counter
	HandshakeRejections *prometheus.CounterVec
	UpstreamEvents      *prometheus.CounterVec
	UpstreamReconnects  prometheus.Counter
	UpstreamConnected   prometheus.Gauge
}

// NewGatewayMetrics creates and registers gateway metrics on the given registry.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of registered WebSocket connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket connections.",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "disconnects_total",
			Help:      "Connections removed from the registry by reason.",
		}, []string{"reason"}),
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_processed_total",
			Help:      "Inbound frames routed to a handler by frame type.",
		}, []string{"type"}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "protocol_errors_total",
			Help:      "Error envelopes sent to clients by code.",
		}, []string{"code"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "broadcasts_total",
			Help:      "Broadcast operations by channel.",
		}, []string{"channel"}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "deliveries_total",
			Help:      "Envelopes queued to individual connections.",
		}),
		SlowConsumers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "slow_consumers_evicted_total",
			Help:      "Connections closed because their send buffer was full.",
		}),
		HeartbeatReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "reaped_connections_total",
			Help:      "Connections closed by the heartbeat sweep.",
		}),
		HandshakeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "rejections_total",
			Help:      "Handshakes rejected before upgrade by reason.",
		}, []string{"reason"}),
		UpstreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "events_total",
			Help:      "Upstream events bridged by kind.",
		}, []string{"kind"}),
		UpstreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "subscribe_attempts_failed_total",
			Help:      "Failed attempts to subscribe to the upstream bus.",
		}),
		UpstreamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "subscription_active",
			Help:      "1 while the upstream subscription is established.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.ConnectionsTotal,
		m.Disconnects,
		m.MessagesProcessed,
		m.ProtocolErrors,
		m.Broadcasts,
		m.Deliveries,
		m.SlowConsumers,
		m.HeartbeatReaped,
		m.HandshakeRejections,
		m.UpstreamEvents,
		m.UpstreamReconnects,
		m.UpstreamConnected,
	)
	return m
}
