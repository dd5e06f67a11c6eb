package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Publisher emits events in the format EventSubscriber reads.
type Publisher struct {
	rdb      goredis.Cmdable
	upstream string
	direct   string
	clock    clockwork.Clock
}

var _ domain.EventPublisher = (*Publisher)(nil)

func NewPublisher(rdb goredis.Cmdable, upstreamChannel, directChannel string, clock clockwork.Clock) *Publisher {
	return &Publisher{rdb: rdb, upstream: upstreamChannel, direct: directChannel, clock: clock}
}

// PublishNotification publishes {type, data, timestamp} on the upstream channel.
func (p *Publisher) PublishNotification(ctx context.Context, eventType string, data map[string]any) error {
	if eventType == "" {
		return fmt.Errorf("%w: missing type", domain.ErrInvalidEvent)
	}
	return p.publish(ctx, p.upstream, notificationMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: p.clock.Now().UnixMilli(),
	})
}

// PublishDirect publishes a user or role addressed event on the direct channel.
func (p *Publisher) PublishDirect(ctx context.Context, target domain.DirectTarget, data map[string]any) error {
	if _, err := newDirectTarget(target.UserID, string(target.Role), string(target.Channel)); err != nil {
		return err
	}
	return p.publish(ctx, p.direct, directMessage{
		UserID:  target.UserID,
		Role:    string(target.Role),
		Channel: string(target.Channel),
		Data:    data,
	})
}

func (p *Publisher) publish(ctx context.Context, channel string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}
