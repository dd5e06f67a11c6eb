package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultClientTimeout     = 60 * time.Second
)

// HeartbeatMonitor closes connections whose last client ping is older than
// the timeout and keeps the rest warm with a server pong.
type HeartbeatMonitor struct {
	hub      *Hub
	interval time.Duration
	timeout  time.Duration
}

func NewHeartbeatMonitor(h *Hub, interval, timeout time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &HeartbeatMonitor{hub: h, interval: interval, timeout: timeout}
}

// Run sweeps on every interval until ctx is cancelled.
func (m *HeartbeatMonitor) Run(ctx context.Context) {
	ticker := m.hub.clock.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("Heartbeat monitor started", "interval", m.interval, "timeout", m.timeout)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Heartbeat monitor stopped")
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}

// Sweep runs one pass and returns the number of reaped connections.
func (m *HeartbeatMonitor) Sweep() int {
	now := m.hub.clock.Now()
	reaped := 0

	var keepalive []byte
	m.hub.registry.ForEach(func(c *Connection) {
		if now.Sub(c.LastLiveness()) > m.timeout {
			if m.hub.Evict(c, ReasonHeartbeatTimeout) {
				reaped++
			}
			return
		}
		if !c.IsOpen() {
			return
		}
		if keepalive == nil {
			keepalive = m.marshalKeepalive(now)
		}
		if keepalive != nil {
			m.hub.deliver(c, keepalive)
		}
	})

	if reaped > 0 {
		m.hub.metrics.HeartbeatReaped.Add(float64(reaped))
		slog.Info("Cleaned stale connections", "reaped", reaped, "remaining", m.hub.registry.Len())
	}
	return reaped
}

func (m *HeartbeatMonitor) marshalKeepalive(now time.Time) []byte {
	env := domain.NewEnvelope(domain.TypePong, "", map[string]any{"serverTime": now.UnixMilli()}, now)
	payload, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal keepalive", "error", err)
		return nil
	}
	return payload
}
