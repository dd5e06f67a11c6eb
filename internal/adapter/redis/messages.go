package redis

import (
	"encoding/json"
	"fmt"

	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
)

// notificationMessage is the payload on the upstream channel.
type notificationMessage struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

// directMessage is the payload on the direct channel. At least one of
// UserID and Role is set; an empty Channel means the baseline channel.
type directMessage struct {
	UserID  string         `json:"userId,omitempty"`
	Role    string         `json:"role,omitempty"`
	Channel string         `json:"channel,omitempty"`
	Data    map[string]any `json:"data"`
}

func decodeNotification(payload string) (domain.UpstreamEvent, error) {
	var msg notificationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return domain.UpstreamEvent{}, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
	}
	if msg.Type == "" {
		return domain.UpstreamEvent{}, fmt.Errorf("%w: missing type", domain.ErrInvalidEvent)
	}
	if msg.Data == nil {
		msg.Data = map[string]any{}
	}
	return domain.UpstreamEvent{Type: msg.Type, Data: msg.Data, Timestamp: msg.Timestamp}, nil
}

func decodeDirect(payload string) (domain.UpstreamEvent, error) {
	var msg directMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return domain.UpstreamEvent{}, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
	}

	target, err := newDirectTarget(msg.UserID, msg.Role, msg.Channel)
	if err != nil {
		return domain.UpstreamEvent{}, err
	}
	if msg.Data == nil {
		msg.Data = map[string]any{}
	}
	return domain.UpstreamEvent{Data: msg.Data, Target: &target}, nil
}

func newDirectTarget(userID, role, channel string) (domain.DirectTarget, error) {
	if userID == "" && role == "" {
		return domain.DirectTarget{}, domain.ErrMissingAudience
	}

	target := domain.DirectTarget{UserID: userID, Channel: domain.BaselineChannel}
	if role != "" {
		target.Role = domain.ParseRole(role)
		if !target.Role.Known() {
			return domain.DirectTarget{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidEvent, role)
		}
	}
	if channel != "" {
		ch, ok := domain.ParseChannel(channel)
		if !ok {
			return domain.DirectTarget{}, fmt.Errorf("%w: %q", domain.ErrUnknownChannel, channel)
		}
		target.Channel = ch
	}
	return target, nil
}
