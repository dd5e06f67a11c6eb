package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// transport adapts a gorilla connection to hub.Transport. gorilla allows one
// concurrent writer plus concurrent WriteControl and Close, which matches
// how the hub writer uses it.
type transport struct {
	conn *websocket.Conn
}

func (t transport) WriteText(data []byte, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t transport) WriteClose(code int, reason string, deadline time.Time) error {
	return t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func (t transport) Close() error {
	return t.conn.Close()
}
