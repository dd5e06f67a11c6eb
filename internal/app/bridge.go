package app

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/metrics"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/correlation"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/retry"
)

const (
	bridgeInitialBackoff = time.Second
	bridgeMaxBackoff     = 30 * time.Second
)

// Broadcaster is the fan-out surface the bridge and stats publisher need.
type Broadcaster interface {
	BroadcastToChannel(ch domain.Channel, data any) int
	SendToUser(userID string, ch domain.Channel, data any) int
	SendToRole(role domain.Role, ch domain.Channel, data any) int
	Subscribers(ch domain.Channel) int
}

// Bridge forwards upstream events to connected clients. It keeps trying to
// subscribe until its context ends; the gateway serves clients either way.
type Bridge struct {
	source  domain.EventSource
	out     Broadcaster
	metrics *metrics.GatewayMetrics
	policy  retry.Policy
}

func NewBridge(source domain.EventSource, out Broadcaster, m *metrics.GatewayMetrics, clock clockwork.Clock) *Bridge {
	b := &Bridge{source: source, out: out, metrics: m}
	b.policy = retry.Policy{
		InitialBackoff: bridgeInitialBackoff,
		MaxBackoff:     bridgeMaxBackoff,
		Clock:          clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			m.UpstreamReconnects.Inc()
			slog.Warn("Upstream subscription failed, retrying",
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
			)
		},
	}
	return b
}

// Run blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		stream, err := retry.Do[domain.EventStream](ctx, b.policy, retry.Always, b.source.Subscribe)
		if err != nil {
			slog.Info("Upstream bridge stopped", "reason", err)
			return
		}

		b.metrics.UpstreamConnected.Set(1)
		b.consume(ctx, stream)
		b.metrics.UpstreamConnected.Set(0)
		_ = stream.Close()

		if ctx.Err() != nil {
			slog.Info("Upstream bridge stopped")
			return
		}
		slog.Warn("Upstream event stream closed, resubscribing")
	}
}

func (b *Bridge) consume(ctx context.Context, stream domain.EventStream) {
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.HandleEvent(correlation.WithID(ctx, correlation.NewID()), ev)
		}
	}
}

// HandleEvent delivers one upstream event. Channel events go to every
// subscriber of the baseline channel as {type, ...data}, and data_changed
// events are repeated on data:changed. Direct events go to their user, or to
// subscribed connections of their role when no user is named.
func (b *Bridge) HandleEvent(ctx context.Context, ev domain.UpstreamEvent) {
	if ev.Target != nil {
		b.metrics.UpstreamEvents.WithLabelValues("direct").Inc()
		b.deliverDirect(ctx, *ev.Target, ev.Data)
		return
	}

	b.metrics.UpstreamEvents.WithLabelValues("broadcast").Inc()

	merged := make(map[string]any, len(ev.Data)+1)
	merged["type"] = ev.Type
	maps.Copy(merged, ev.Data)

	delivered := b.out.BroadcastToChannel(domain.ChannelNotifications, merged)
	if ev.Type == domain.DataChangedEvent {
		delivered += b.out.BroadcastToChannel(domain.ChannelDataChanged, ev.Data)
	}

	slog.DebugContext(ctx, "Upstream event bridged", "type", ev.Type, "deliveries", delivered)
}

func (b *Bridge) deliverDirect(ctx context.Context, target domain.DirectTarget, data map[string]any) {
	var delivered int
	if target.UserID != "" {
		delivered = b.out.SendToUser(target.UserID, target.Channel, data)
	} else {
		delivered = b.out.SendToRole(target.Role, target.Channel, data)
	}

	slog.DebugContext(ctx, "Direct event bridged",
		"user_id", target.UserID,
		"role", target.Role,
		"channel", target.Channel,
		"deliveries", delivered,
	)
}
