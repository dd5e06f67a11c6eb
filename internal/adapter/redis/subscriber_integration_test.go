package redis

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUpstream = "notifications"
	testDirect   = "notifications:direct"
)

func nextEvent(t *testing.T, stream domain.EventStream) domain.UpstreamEvent {
	t.Helper()
	select {
	case ev, ok := <-stream.Events():
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for upstream event")
		return domain.UpstreamEvent{}
	}
}

func TestEventSubscriber_ReceivesPublishedEvents(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	publisher := NewPublisher(client, testUpstream, testDirect, clock)
	subscriber := NewEventSubscriber(client, testUpstream, testDirect)

	stream, err := subscriber.Subscribe(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	require.NoError(t, publisher.PublishNotification(ctx, "data_changed", map[string]any{"entity": "nomination"}))

	ev := nextEvent(t, stream)
	assert.Equal(t, "data_changed", ev.Type)
	assert.Equal(t, map[string]any{"entity": "nomination"}, ev.Data)
	assert.Equal(t, int64(1_700_000_000_000), ev.Timestamp)
	assert.Nil(t, ev.Target)

	require.NoError(t, publisher.PublishDirect(ctx, domain.DirectTarget{
		Role:    domain.RoleMinistre,
		Channel: domain.ChannelReportingUpdate,
	}, map[string]any{"report": "Q3"}))

	ev = nextEvent(t, stream)
	require.NotNil(t, ev.Target)
	assert.Equal(t, domain.RoleMinistre, ev.Target.Role)
	assert.Equal(t, domain.ChannelReportingUpdate, ev.Target.Channel)
	assert.Equal(t, map[string]any{"report": "Q3"}, ev.Data)
}

func TestEventSubscriber_SkipsMalformedPayloads(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	stream, err := NewEventSubscriber(client, testUpstream, testDirect).Subscribe(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	require.NoError(t, client.Publish(ctx, testUpstream, "{not json").Err())
	require.NoError(t, client.Publish(ctx, testDirect, `{"channel":"notifications","data":{}}`).Err())
	require.NoError(t, client.Publish(ctx, testUpstream, `{"type":"nomination_created","data":{"id":9}}`).Err())

	ev := nextEvent(t, stream)
	assert.Equal(t, "nomination_created", ev.Type)
	assert.InDelta(t, 9, ev.Data["id"], 0)
}

func TestEventSubscriber_CloseEndsStream(t *testing.T) {
	client := setupTestClient(t)

	stream, err := NewEventSubscriber(client, testUpstream, testDirect).Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	select {
	case _, ok := <-stream.Events():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("stream not closed")
	}
}

func TestEventSubscriber_SubscribeFailsWhenRedisUnreachable(t *testing.T) {
	client, err := NewClient("redis://127.0.0.1:1", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = NewEventSubscriber(client, testUpstream, testDirect).Subscribe(ctx)
	assert.Error(t, err)
}
