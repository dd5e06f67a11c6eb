package domain

// Channel is a named logical broadcast topic a connection can subscribe to.
type Channel string

const (
	ChannelNotifications   Channel = "notifications"
	ChannelDataChanged     Channel = "data:changed"
	ChannelReportingUpdate Channel = "reporting:update"
	ChannelAdminBroadcast  Channel = "admin:broadcast"
	ChannelSystemMetrics   Channel = "system:metrics"
)

// BaselineChannel is auto-subscribed on connect and can never be removed.
const BaselineChannel = ChannelNotifications

var catalog = []Channel{
	ChannelNotifications,
	ChannelDataChanged,
	ChannelReportingUpdate,
	ChannelAdminBroadcast,
	ChannelSystemMetrics,
}

// Channels returns the fixed channel catalog.
func Channels() []Channel {
	out := make([]Channel, len(catalog))
	copy(out, catalog)
	return out
}

// ParseChannel maps a wire name onto the catalog. Unknown names are rejected.
func ParseChannel(name string) (Channel, bool) {
	for _, c := range catalog {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// EnvelopeType derives the outbound envelope type used when broadcasting on c.
func (c Channel) EnvelopeType() EnvelopeType {
	switch c {
	case ChannelNotifications:
		return TypeNotification
	case ChannelDataChanged:
		return TypeDataChange
	default:
		return TypeBroadcast
	}
}
