package hub

// Stats is a point-in-time view of gateway activity.
type Stats struct {
	TotalConnections  int64          `json:"totalConnections"`
	TotalMessages     int64          `json:"totalMessages"`
	TotalBroadcasts   int64          `json:"totalBroadcasts"`
	StartedAt         int64          `json:"startedAt"`
	ActiveConnections int            `json:"activeConnections"`
	UptimeMs          int64          `json:"uptimeMs"`
	ClientsByRole     map[string]int `json:"clientsByRole"`
}

// Stats returns the current counters and a per-role breakdown of live connections.
func (h *Hub) Stats() Stats {
	byRole := make(map[string]int)
	active := 0
	h.registry.ForEach(func(c *Connection) {
		active++
		byRole[string(c.principal.Role)]++
	})

	return Stats{
		TotalConnections:  h.totalConnections.Load(),
		TotalMessages:     h.totalMessages.Load(),
		TotalBroadcasts:   h.totalBroadcasts.Load(),
		StartedAt:         h.startedAt.UnixMilli(),
		ActiveConnections: active,
		UptimeMs:          h.clock.Since(h.startedAt).Milliseconds(),
		ClientsByRole:     byRole,
	}
}
