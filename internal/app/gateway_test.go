package app

import (
	"context"
	"testing"
	"time"

	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/okatech-org/sgg.ga-sub004/internal/hub"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_StartAndShutdown(t *testing.T) {
	parts := newTestHub(t)
	source := newFakeSource(0)

	gw := NewGateway(
		parts.hub,
		hub.NewHeartbeatMonitor(parts.hub, 30*time.Second, 60*time.Second),
		NewBridge(source, parts.broadcaster, parts.metrics, parts.clock),
		NewStatsPublisher(parts.hub, parts.broadcaster, parts.clock, 0),
	)
	gw.Start(context.Background())

	stream := source.nextStream(t)
	client := parts.connect(t, "u-1", domain.RoleCitoyen)

	stream.events <- domain.UpstreamEvent{Type: "hello", Data: map[string]any{}}
	client.waitFrames(t, 2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		gw.Shutdown()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("gateway shutdown hung")
	}

	frames := client.waitFrames(t, 3)
	assert.Equal(t, domain.TypeBroadcast, frames[2].Type)
	client.mu.Lock()
	assert.True(t, client.closed)
	assert.Equal(t, hub.CloseGoingAway, client.closeCode)
	client.mu.Unlock()

	assert.Equal(t, 0, parts.hub.Registry().Len())
	assert.True(t, stream.closed.Load())
	assert.InDelta(t, 0, testutil.ToFloat64(parts.metrics.ActiveConnections), 0)
}

func TestGateway_ShutdownWithoutStart(t *testing.T) {
	parts := newTestHub(t)
	gw := NewGateway(parts.hub, nil, nil, nil)

	require.NotPanics(t, gw.Shutdown)
}
