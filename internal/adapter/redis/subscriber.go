package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const subscriptionBufferSize = 256

// EventSubscriber reads upstream events from two Redis pub/sub channels: one
// with channel broadcasts and one with user or role addressed events.
type EventSubscriber struct {
	rdb      *goredis.Client
	upstream string
	direct   string
}

var _ domain.EventSource = (*EventSubscriber)(nil)

func NewEventSubscriber(rdb *goredis.Client, upstreamChannel, directChannel string) *EventSubscriber {
	return &EventSubscriber{rdb: rdb, upstream: upstreamChannel, direct: directChannel}
}

// Subscribe returns once Redis confirmed the subscription. Malformed payloads
// are logged and skipped. go-redis reconnects dropped connections on its own;
// the stream only ends when it is closed or ctx is cancelled.
func (s *EventSubscriber) Subscribe(ctx context.Context) (domain.EventStream, error) {
	pubsub := s.rdb.Subscribe(ctx, s.upstream, s.direct)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s, %s: %w", s.upstream, s.direct, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := &eventStream{
		pubsub: pubsub,
		events: make(chan domain.UpstreamEvent, subscriptionBufferSize),
		cancel: cancel,
	}
	go s.pump(streamCtx, stream)

	slog.Info("Subscribed to upstream events", "upstream_channel", s.upstream, "direct_channel", s.direct)
	return stream, nil
}

func (s *EventSubscriber) pump(ctx context.Context, stream *eventStream) {
	defer close(stream.events)

	ch := stream.pubsub.Channel(goredis.WithChannelSize(subscriptionBufferSize))
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			event, err := s.decode(msg)
			if err != nil {
				slog.Warn("Dropping malformed upstream event", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case stream.events <- event:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *EventSubscriber) decode(msg *goredis.Message) (domain.UpstreamEvent, error) {
	if msg.Channel == s.direct {
		return decodeDirect(msg.Payload)
	}
	return decodeNotification(msg.Payload)
}

type eventStream struct {
	pubsub    *goredis.PubSub
	events    chan domain.UpstreamEvent
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

func (s *eventStream) Events() <-chan domain.UpstreamEvent {
	return s.events
}

func (s *eventStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.pubsub.Close()
	})
	return s.closeErr
}
