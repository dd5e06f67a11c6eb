package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
)

var errNotAnObject = errors.New("inbound frame is not a JSON object")

// DefaultMaxMessagesPerMinute caps inbound frames per connection per window.
const DefaultMaxMessagesPerMinute = 30

// Dispatcher routes inbound frames for a single connection. Every failure is
// answered with an error envelope to the sender and the connection stays open.
type Dispatcher struct {
	hub          *Hub
	broadcaster  *Broadcaster
	maxPerMinute int
}

func NewDispatcher(h *Hub, b *Broadcaster, maxPerMinute int) *Dispatcher {
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultMaxMessagesPerMinute
	}
	return &Dispatcher{hub: h, broadcaster: b, maxPerMinute: maxPerMinute}
}

// Handle processes one raw frame read from c. It must only be called from c's read loop.
func (d *Dispatcher) Handle(ctx context.Context, c *Connection, raw []byte) {
	now := d.hub.clock.Now()

	if !c.rate.Allow(now, d.maxPerMinute) {
		slog.DebugContext(ctx, "Inbound message rate limited", "count", c.rate.Count)
		d.replyError(c, domain.ErrorPayload{
			Code:    domain.CodeRateLimited,
			Message: "Too many messages, please slow down",
		})
		return
	}

	var frame domain.InboundFrame
	if err := decodeFrame(raw, &frame); err != nil {
		slog.DebugContext(ctx, "Invalid inbound frame", "error", err)
		d.replyError(c, domain.ErrorPayload{
			Code:    domain.CodeInvalidMessage,
			Message: "Invalid message format",
		})
		return
	}

	d.hub.totalMessages.Add(1)
	d.hub.metrics.MessagesProcessed.WithLabelValues(metricLabel(frame.Type)).Inc()

	switch frame.Type {
	case domain.InboundSubscribe:
		d.handleSubscribe(ctx, c, frame.Channel)
	case domain.InboundUnsubscribe:
		d.handleUnsubscribe(ctx, c, frame.Channel)
	case domain.InboundPing:
		c.touch(now)
		d.hub.send(c, domain.NewEnvelope(domain.TypePong, "", nil, now))
	case domain.InboundBroadcast:
		d.handleBroadcast(ctx, c, frame.Data)
	default:
		d.replyError(c, domain.ErrorPayload{
			Code:    domain.CodeUnknownType,
			Message: fmt.Sprintf("Unknown message type: %s", frame.Type),
			Type:    string(frame.Type),
		})
	}
}

func (d *Dispatcher) handleSubscribe(ctx context.Context, c *Connection, name string) {
	if name == "" {
		d.replyError(c, domain.ErrorPayload{Code: domain.CodeMissingChannel, Message: "Channel required"})
		return
	}

	ch, known := domain.ParseChannel(name)
	if !known || !c.subscribe(ch) {
		slog.InfoContext(ctx, "Subscription denied", "channel", name, "role", c.principal.Role)
		d.replyError(c, domain.ErrorPayload{
			Code:    domain.CodeForbidden,
			Message: fmt.Sprintf("Access to channel %q is not allowed for your role", name),
			Channel: name,
		})
		return
	}

	d.hub.send(c, domain.NewEnvelope(domain.TypeSubscribed, ch, map[string]any{
		"message": fmt.Sprintf("Subscribed to channel %q", name),
	}, d.hub.clock.Now()))
}

func (d *Dispatcher) handleUnsubscribe(ctx context.Context, c *Connection, name string) {
	if name == "" {
		d.replyError(c, domain.ErrorPayload{Code: domain.CodeMissingChannel, Message: "Channel required"})
		return
	}

	ch := domain.Channel(name)
	if !c.unsubscribe(ch) {
		d.replyError(c, domain.ErrorPayload{
			Code:    domain.CodeCannotUnsubscribe,
			Message: "Cannot unsubscribe from notifications",
			Channel: name,
		})
		return
	}

	slog.DebugContext(ctx, "Unsubscribed", "channel", name)
	d.hub.send(c, domain.NewEnvelope(domain.TypeUnsubscribed, ch, map[string]any{
		"message": fmt.Sprintf("Unsubscribed from channel %q", name),
	}, d.hub.clock.Now()))
}

func (d *Dispatcher) handleBroadcast(ctx context.Context, c *Connection, data json.RawMessage) {
	if !c.principal.Role.IsAdmin() {
		slog.WarnContext(ctx, "Broadcast attempt denied", "role", c.principal.Role)
		d.replyError(c, domain.ErrorPayload{
			Code:    domain.CodeForbidden,
			Message: "Only administrators can broadcast",
			Channel: string(domain.ChannelAdminBroadcast),
		})
		return
	}

	var payload any
	if len(data) > 0 {
		payload = data
	}
	delivered := d.broadcaster.BroadcastToChannel(domain.ChannelAdminBroadcast, payload)
	slog.InfoContext(ctx, "Admin broadcast sent", "clients", delivered)
}

func (d *Dispatcher) replyError(c *Connection, payload domain.ErrorPayload) {
	d.hub.metrics.ProtocolErrors.WithLabelValues(string(payload.Code)).Inc()
	d.hub.send(c, domain.NewEnvelope(domain.TypeError, "", payload, d.hub.clock.Now()))
}

// metricLabel keeps the label set closed; client-chosen types collapse into "unknown".
func metricLabel(t domain.InboundType) string {
	switch t {
	case domain.InboundSubscribe, domain.InboundUnsubscribe, domain.InboundPing, domain.InboundBroadcast:
		return string(t)
	default:
		return "unknown"
	}
}

// decodeFrame accepts only JSON objects. null, arrays and scalars would
// otherwise decode into a zero frame.
func decodeFrame(raw []byte, frame *domain.InboundFrame) error {
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); len(trimmed) == 0 || trimmed[0] != '{' {
		return errNotAnObject
	}
	return json.Unmarshal(raw, frame)
}
