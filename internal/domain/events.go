package domain

import "context"

// DataChangedEvent is the upstream type tag that is also fanned out on ChannelDataChanged.
const DataChangedEvent = "data_changed"

// DirectTarget addresses an upstream event at a user or a role instead of a channel audience.
type DirectTarget struct {
	UserID  string
	Role    Role
	Channel Channel
}

// UpstreamEvent is one event received from the pub/sub backend.
// Target is nil for channel broadcasts.
type UpstreamEvent struct {
	Type      string
	Data      map[string]any
	Timestamp int64
	Target    *DirectTarget
}

// EventStream delivers upstream events until it is closed or the backend drops it.
type EventStream interface {
	Events() <-chan UpstreamEvent
	Close() error
}

// EventSource opens subscriptions on the upstream bus.
type EventSource interface {
	Subscribe(ctx context.Context) (EventStream, error)
}

// EventPublisher emits events onto the upstream bus.
type EventPublisher interface {
	PublishNotification(ctx context.Context, eventType string, data map[string]any) error
	PublishDirect(ctx context.Context, target DirectTarget, data map[string]any) error
}
