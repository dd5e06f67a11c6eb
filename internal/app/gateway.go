package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/okatech-org/sgg.ga-sub004/internal/hub"
)

// Gateway owns the background tasks around the hub and the order in which
// they stop.
type Gateway struct {
	hub       *hub.Hub
	heartbeat *hub.HeartbeatMonitor
	bridge    *Bridge
	stats     *StatsPublisher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGateway(h *hub.Hub, heartbeat *hub.HeartbeatMonitor, bridge *Bridge, stats *StatsPublisher) *Gateway {
	return &Gateway{hub: h, heartbeat: heartbeat, bridge: bridge, stats: stats}
}

// Start launches the heartbeat, the upstream bridge and the stats publisher.
// It returns immediately; a failing upstream never blocks it.
func (g *Gateway) Start(ctx context.Context) {
	ctx, g.cancel = context.WithCancel(ctx)

	tasks := []func(context.Context){g.heartbeat.Run, g.bridge.Run, g.stats.Run}
	for _, run := range tasks {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			run(ctx)
		}()
	}

	slog.Info("Gateway started")
}

// Shutdown says goodbye to every client, closes them, then stops the
// background tasks and waits for them. Stop accepting handshakes first.
func (g *Gateway) Shutdown() {
	g.hub.Shutdown()

	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()

	slog.Info("Gateway stopped")
}
