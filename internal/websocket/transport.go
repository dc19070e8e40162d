package websocket

import (
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
)

// wsTransport adapts a gorilla connection to domain.Transport. Writes come
// only from the connection's writer goroutine; Close is serialized behind
// the writer's exit by client.stop, so frames never interleave.
type wsTransport struct {
	conn      *gorilla.Conn
	closeOnce sync.Once
}

// NewTransport wraps an upgraded WebSocket connection.
func NewTransport(conn *gorilla.Conn) domain.Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Write(data []byte, deadline time.Time) error {
	_ = t.conn.SetWriteDeadline(deadline)
	return t.conn.WriteMessage(gorilla.TextMessage, data)
}

func (t *wsTransport) Ping(deadline time.Time) error {
	return t.conn.WriteControl(gorilla.PingMessage, nil, deadline)
}

func (t *wsTransport) Close(reason string) error {
	t.closeOnce.Do(func() {
		closeMsg := gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, reason)
		_ = t.conn.WriteControl(gorilla.CloseMessage, closeMsg, time.Now().Add(time.Second))
		_ = t.conn.Close()
	})
	return nil
}
