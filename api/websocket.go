// File: api/websocket.go
// Author: momentics <momentics@gmail.com>
//
// Application-facing capability interface of a server-side WebSocket.

package api

// Socket is the surface an application uses to talk to one peer.
type Socket interface {
	// Send frames and queues one message. It never blocks on the network.
	Send(kind MessageKind, data []byte) error

	// Ping sends a ping; done, if non-nil, runs when the matching pong arrives.
	Ping(payload []byte, done func()) error

	// Close starts the closing handshake. Code 0 means normal closure.
	Close(code int, reason string) error

	// ReadyState reports the current lifecycle state.
	ReadyState() ReadyState

	// BufferedAmount is the number of payload bytes queued but not yet written.
	BufferedAmount() int64

	// Protocol is the negotiated subprotocol, empty if none.
	Protocol() string

	// URL is the ws: or wss: URL the client connected to.
	URL() string

	// Events delivers notifications in order; it is closed after CloseEvent.
	Events() <-chan Event
}
