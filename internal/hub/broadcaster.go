package hub

import (
	"encoding/json"
	"log/slog"

	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
)

// Broadcaster delivers envelopes to registry entries. Delivery is best effort:
// no acknowledgement, no retry and no queueing for offline recipients. Closed
// transports are skipped silently and every method returns the number of
// connections the envelope was queued to.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(h *Hub) *Broadcaster {
	return &Broadcaster{hub: h}
}

// BroadcastToChannel sends data to every open connection subscribed to ch.
func (b *Broadcaster) BroadcastToChannel(ch domain.Channel, data any) int {
	b.hub.totalBroadcasts.Add(1)
	b.hub.metrics.Broadcasts.WithLabelValues(string(ch)).Inc()

	env := domain.NewEnvelope(ch.EnvelopeType(), ch, data, b.hub.clock.Now())
	delivered := b.fanOut(env, func(c *Connection) bool {
		return c.IsSubscribed(ch)
	})

	if delivered > 0 {
		slog.Debug("Broadcast delivered", "channel", ch, "clients", delivered)
	}
	return delivered
}

// SendToUser sends data to every open connection of userID. Direct addressing
// ignores the subscription set so system-initiated personal notifications
// always reach the user.
func (b *Broadcaster) SendToUser(userID string, ch domain.Channel, data any) int {
	env := domain.NewEnvelope(domain.TypeNotification, ch, data, b.hub.clock.Now())
	return b.fanOut(env, func(c *Connection) bool {
		return c.principal.UserID == userID
	})
}

// SendToRole sends data to open connections of role that are subscribed to ch.
func (b *Broadcaster) SendToRole(role domain.Role, ch domain.Channel, data any) int {
	env := domain.NewEnvelope(domain.TypeNotification, ch, data, b.hub.clock.Now())
	return b.fanOut(env, func(c *Connection) bool {
		return c.principal.Role == role && c.IsSubscribed(ch)
	})
}

// Subscribers counts registered connections subscribed to ch.
func (b *Broadcaster) Subscribers(ch domain.Channel) int {
	n := 0
	b.hub.registry.ForEach(func(c *Connection) {
		if c.IsSubscribed(ch) {
			n++
		}
	})
	return n
}

func (b *Broadcaster) fanOut(env domain.Envelope, match func(*Connection) bool) int {
	payload, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal broadcast envelope", "channel", env.Channel, "error", err)
		return 0
	}

	delivered := 0
	b.hub.registry.ForEach(func(c *Connection) {
		if !c.IsOpen() || !match(c) {
			return
		}
		if b.hub.deliver(c, payload) {
			delivered++
		}
	})

	b.hub.metrics.Deliveries.Add(float64(delivered))
	return delivered
}
