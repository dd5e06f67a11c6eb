package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/okatech-org/sgg.ga-sub004/internal/hub"
)

type StatsSource interface {
	Stats() hub.Stats
}

// StatsPublisher pushes a gateway stats snapshot to system:metrics
// subscribers on a fixed interval. Nothing is built while nobody listens.
type StatsPublisher struct {
	source   StatsSource
	out      Broadcaster
	clock    clockwork.Clock
	interval time.Duration
}

func NewStatsPublisher(source StatsSource, out Broadcaster, clock clockwork.Clock, interval time.Duration) *StatsPublisher {
	return &StatsPublisher{source: source, out: out, clock: clock, interval: interval}
}

// Run blocks until ctx is cancelled. A zero interval disables publishing.
func (p *StatsPublisher) Run(ctx context.Context) {
	if p.interval <= 0 {
		slog.Info("Stats publisher disabled")
		return
	}

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.Publish()
		}
	}
}

// Publish sends one snapshot and returns the number of recipients.
func (p *StatsPublisher) Publish() int {
	if p.out.Subscribers(domain.ChannelSystemMetrics) == 0 {
		return 0
	}
	return p.out.BroadcastToChannel(domain.ChannelSystemMetrics, p.source.Stats())
}
