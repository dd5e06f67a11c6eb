package hub

import "time"

// MessageWindow is the length of the inbound rate-limit window.
const MessageWindow = 60 * time.Second

// RateWindow is a fixed-window message counter. Bursts straddling a window
// boundary can reach twice the limit; that approximation is accepted.
type RateWindow struct {
	Count       int
	WindowStart time.Time
}

// Allow counts one message at now and reports whether it is within max.
func (w *RateWindow) Allow(now time.Time, max int) bool {
	if now.Sub(w.WindowStart) >= MessageWindow {
		w.Count = 0
		w.WindowStart = now
	}
	w.Count++
	return w.Count <= max
}
