// File: api/events.go
// Package api defines the events a connection delivers to its owner.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Event is one notification from a connection. The concrete types are
// OpenEvent, MessageEvent, CloseEvent and ErrorEvent; consumers use a type
// switch. Per connection, OpenEvent precedes every MessageEvent and the
// CloseEvent is always last.
type Event interface {
	event()
}

// OpenEvent is emitted once, when the connection reaches Open.
type OpenEvent struct{}

// MessageEvent carries one fully assembled application message.
type MessageEvent struct {
	Kind MessageKind
	Data []byte
}

// Text returns the payload as a string.
func (m MessageEvent) Text() string {
	return string(m.Data)
}

// CloseEvent is emitted when the connection reaches Closed.
type CloseEvent struct {
	Code     int
	Reason   string
	WasClean bool
}

// ErrorEvent reports a handshake, protocol or transport failure. It is
// always followed by a CloseEvent.
type ErrorEvent struct {
	Err error
}

func (OpenEvent) event()    {}
func (MessageEvent) event() {}
func (CloseEvent) event()   {}
func (ErrorEvent) event()   {}
