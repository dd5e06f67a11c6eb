package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
)

var (
	errConnectionClosed = domain.ErrConnectionGone
	errSendBufferFull   = domain.ErrSendBufferFull
)

// Connection is one live client session. The registry owns it; other
// components only hold it for the duration of a call.
type Connection struct {
	id          string
	principal   domain.Principal
	connectedAt time.Time
	writer      *clientWriter

	mu           sync.RWMutex
	channels     map[domain.Channel]struct{}
	lastLiveness time.Time

	// Only touched by the connection's own read loop.
	rate RateWindow
}

func newConnection(id string, principal domain.Principal, writer *clientWriter, now time.Time) *Connection {
	return &Connection{
		id:           id,
		principal:    principal,
		connectedAt:  now,
		writer:       writer,
		channels:     map[domain.Channel]struct{}{domain.BaselineChannel: {}},
		lastLiveness: now,
		rate:         RateWindow{WindowStart: now},
	}
}

func (c *Connection) ID() string                  { return c.id }
func (c *Connection) Principal() domain.Principal { return c.principal }
func (c *Connection) ConnectedAt() time.Time      { return c.connectedAt }

// IsOpen reports whether the transport still accepts frames.
func (c *Connection) IsOpen() bool {
	return c.writer.isOpen()
}

// IsSubscribed reports whether ch is in the connection's subscription set.
func (c *Connection) IsSubscribed(ch domain.Channel) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[ch]
	return ok
}

// Subscriptions returns the subscribed channels in name order.
func (c *Connection) Subscriptions() []domain.Channel {
	c.mu.RLock()
	out := make([]domain.Channel, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LastLiveness returns the time of the last client ping.
func (c *Connection) LastLiveness() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastLiveness
}

// subscribe adds ch if the role allows it.
func (c *Connection) subscribe(ch domain.Channel) bool {
	if !domain.CanReceive(c.principal.Role, ch) {
		return false
	}
	c.mu.Lock()
	c.channels[ch] = struct{}{}
	c.mu.Unlock()
	return true
}

// unsubscribe removes ch. The baseline channel is never removed.
func (c *Connection) unsubscribe(ch domain.Channel) bool {
	if ch == domain.BaselineChannel {
		return false
	}
	c.mu.Lock()
	delete(c.channels, ch)
	c.mu.Unlock()
	return true
}

func (c *Connection) touch(now time.Time) {
	c.mu.Lock()
	c.lastLiveness = now
	c.mu.Unlock()
}

func (c *Connection) enqueue(msg []byte) error {
	return c.writer.enqueue(msg)
}

func (c *Connection) close(final []byte, code int, reason string) {
	c.writer.stop(final, code, reason)
}
