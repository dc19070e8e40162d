package domain

import "time"

// Transport is the write side of one duplex client connection. The registry
// assumes Write can fail and Close is idempotent; the concrete WebSocket
// adapter lives in internal/websocket.
type Transport interface {
	// Write sends one text frame, giving up at deadline. A returned error
	// means the connection is broken and will be disconnected.
	Write(data []byte, deadline time.Time) error

	// Ping sends a keepalive probe. Failures are treated like write
	// failures.
	Ping(deadline time.Time) error

	// Close tears the connection down, best-effort sending a close frame
	// with the given reason first. Safe to call more than once.
	Close(reason string) error
}
