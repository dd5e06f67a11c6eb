package domain

import (
	"encoding/json"
	"time"
)

// EnvelopeType is the "type" tag of a server to client frame.
type EnvelopeType string

const (
	TypeNotification EnvelopeType = "notification"
	TypeDataChange   EnvelopeType = "data_change"
	TypeBroadcast    EnvelopeType = "broadcast"
	TypeError        EnvelopeType = "error"
	TypePong         EnvelopeType = "pong"
	TypeSubscribed   EnvelopeType = "subscribed"
	TypeUnsubscribed EnvelopeType = "unsubscribed"
)

// Envelope is the outbound message wrapper. Clients never construct one.
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	Channel   Channel      `json:"channel,omitempty"`
	Data      any          `json:"data,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// NewEnvelope stamps an envelope with now in Unix milliseconds.
func NewEnvelope(typ EnvelopeType, channel Channel, data any, now time.Time) Envelope {
	return Envelope{
		Type:      typ,
		Channel:   channel,
		Data:      data,
		Timestamp: now.UnixMilli(),
	}
}

// InboundType is the "type" tag of a client to server frame.
type InboundType string

const (
	InboundSubscribe   InboundType = "subscribe"
	InboundUnsubscribe InboundType = "unsubscribe"
	InboundPing        InboundType = "ping"
	InboundBroadcast   InboundType = "broadcast"
)

// InboundFrame is the decoded client frame. Data is kept raw and forwarded as-is.
type InboundFrame struct {
	Type    InboundType     `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
