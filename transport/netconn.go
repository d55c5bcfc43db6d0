// File: transport/netconn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net"
	"time"

	"github.com/momentics/wsgate/api"
)

var _ api.Transport = (*NetConn)(nil)

// NetConn adapts a hijacked net.Conn to api.Transport.
type NetConn struct {
	conn net.Conn
}

// NewNetConn takes over conn for WebSocket traffic: deadlines inherited
// from the HTTP server are cleared and Nagle's algorithm is disabled.
func NewNetConn(conn net.Conn) *NetConn {
	_ = conn.SetDeadline(time.Time{})
	_ = setNoDelay(conn)
	return &NetConn{conn: conn}
}

// Read fills buf with whatever the peer has sent.
func (n *NetConn) Read(buf []byte) (int, error) {
	return n.conn.Read(buf)
}

// Write writes buf in full.
func (n *NetConn) Write(buf []byte) (int, error) {
	return n.conn.Write(buf)
}

// Close the connection.
func (n *NetConn) Close() error {
	return n.conn.Close()
}

// RemoteAddr returns the peer address.
func (n *NetConn) RemoteAddr() net.Addr {
	return n.conn.RemoteAddr()
}
