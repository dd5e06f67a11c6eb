package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/metrics"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
)

// WebSocket close codes used by the hub.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

// DisconnectReason says why a connection left the registry.
type DisconnectReason string

const (
	ReasonClientClosed     DisconnectReason = "client_closed"
	ReasonTransportError   DisconnectReason = "transport_error"
	ReasonHeartbeatTimeout DisconnectReason = "heartbeat_timeout"
	ReasonSlowConsumer     DisconnectReason = "slow_consumer"
	ReasonShutdown         DisconnectReason = "shutdown"
)

func (r DisconnectReason) closeFrame() (int, string) {
	switch r {
	case ReasonHeartbeatTimeout:
		return CloseGoingAway, "Heartbeat timeout"
	case ReasonSlowConsumer:
		return ClosePolicyViolation, "Slow consumer"
	case ReasonShutdown:
		return CloseGoingAway, "Server shutdown"
	default:
		return CloseNormal, ""
	}
}

const (
	defaultSendBufferSize = 16
	defaultWriteTimeout   = 5 * time.Second
)

// Options tunes per-connection resources.
type Options struct {
	SendBufferSize int
	WriteTimeout   time.Duration
}

// Hub owns the registry and the gateway-wide counters.
type Hub struct {
	registry *Registry
	clock    clockwork.Clock
	metrics  *metrics.GatewayMetrics
	opts     Options
	newID    func() string

	startedAt        time.Time
	totalConnections atomic.Int64
	totalMessages    atomic.Int64
	totalBroadcasts  atomic.Int64
}

// New creates a hub around registry.
func New(registry *Registry, clock clockwork.Clock, m *metrics.GatewayMetrics, opts Options) *Hub {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = defaultSendBufferSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Hub{
		registry:  registry,
		clock:     clock,
		metrics:   m,
		opts:      opts,
		newID:     uuid.NewString,
		startedAt: clock.Now(),
	}
}

// Registry exposes the underlying registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Register creates a connection for an authenticated principal, inserts it and
// sends the welcome envelope.
func (h *Hub) Register(principal domain.Principal, transport Transport) (*Connection, error) {
	now := h.clock.Now()
	writer := newClientWriter(transport, h.clock, h.opts.SendBufferSize, h.opts.WriteTimeout)
	c := newConnection(h.newID(), principal, writer, now)

	if err := h.registry.Insert(c); err != nil {
		if errors.Is(err, domain.ErrRegistryClosed) {
			code, text := ReasonShutdown.closeFrame()
			c.close(nil, code, text)
			slog.Info("Refusing connection during shutdown", "user_id", principal.UserID)
			return nil, fmt.Errorf("register connection: %w", err)
		}
		c.close(nil, CloseInternalError, "Internal error")
		slog.Error("Connection id collision", "conn_id", c.id, "error", err)
		return nil, fmt.Errorf("register connection: %w", err)
	}

	h.totalConnections.Add(1)
	h.metrics.ConnectionsTotal.Inc()
	h.metrics.ActiveConnections.Inc()

	slog.Info("Client connected",
		"conn_id", c.id,
		"user_id", principal.UserID,
		"role", principal.Role,
		"active", h.registry.Len(),
	)

	h.send(c, domain.NewEnvelope(domain.TypeSubscribed, domain.BaselineChannel, map[string]any{
		"message":           "Connected to the SGG Digital notification system",
		"clientId":          c.id,
		"availableChannels": domain.AuthorizedChannels(principal.Role),
	}, now))

	return c, nil
}

// Disconnect removes c from the registry and closes its transport. Only the
// first call for a connection counts; later calls just make sure it is closed.
func (h *Hub) Disconnect(c *Connection, reason DisconnectReason) bool {
	removed := h.unregister(c, reason)
	code, text := reason.closeFrame()
	c.close(nil, code, text)
	return removed
}

// Evict is Disconnect for callers that must not wait on the socket: the
// registry entry goes away now, the close frame is written in the background.
func (h *Hub) Evict(c *Connection, reason DisconnectReason) bool {
	removed := h.unregister(c, reason)
	code, text := reason.closeFrame()
	go c.close(nil, code, text)
	return removed
}

func (h *Hub) unregister(c *Connection, reason DisconnectReason) bool {
	if _, removed := h.registry.Remove(c.id); !removed {
		return false
	}

	h.metrics.ActiveConnections.Dec()
	h.metrics.Disconnects.WithLabelValues(string(reason)).Inc()

	slog.Info("Client disconnected",
		"conn_id", c.id,
		"user_id", c.principal.UserID,
		"reason", reason,
		"active", h.registry.Len(),
	)
	return true
}

// Shutdown sends a final envelope to every connection, closes them all and
// empties the registry. Register refuses connections from then on.
func (h *Hub) Shutdown() {
	final, err := json.Marshal(domain.NewEnvelope(domain.TypeBroadcast, "", map[string]any{
		"message": "Server shutting down",
	}, h.clock.Now()))
	if err != nil {
		slog.Error("Failed to marshal shutdown envelope", "error", err)
		final = nil
	}

	conns := h.registry.Drain()
	code, text := ReasonShutdown.closeFrame()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			c.close(final, code, text)
		}(c)
	}
	wg.Wait()

	h.metrics.ActiveConnections.Set(0)
	h.metrics.Disconnects.WithLabelValues(string(ReasonShutdown)).Add(float64(len(conns)))
	slog.Info("Hub shutdown complete", "disconnected_clients", len(conns))
}

// send marshals env and queues it on c.
func (h *Hub) send(c *Connection, env domain.Envelope) bool {
	payload, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal envelope", "type", env.Type, "error", err)
		return false
	}
	return h.deliver(c, payload)
}

// deliver queues payload on c without blocking. A full buffer evicts c.
func (h *Hub) deliver(c *Connection, payload []byte) bool {
	err := c.enqueue(payload)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errSendBufferFull):
		slog.Warn("Disconnecting slow client", "conn_id", c.id, "user_id", c.principal.UserID)
		h.metrics.SlowConsumers.Inc()
		h.Evict(c, ReasonSlowConsumer)
		return false
	default:
		return false
	}
}
