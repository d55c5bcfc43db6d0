// File: server/conn.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn is the server side of one WebSocket connection. It owns the codec
// chosen at handshake time, moves through CONNECTING, OPEN, CLOSING and
// CLOSED, and reports everything that happens as ordered events.
//
// Three goroutines touch a Conn: the reader (Serve), the writer draining the
// send queue and the keepalive ticker. All state transitions happen under
// c.mu; callbacks supplied by the application run outside it.

package server

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/momentics/wsgate/api"
	"github.com/momentics/wsgate/pool"
	"github.com/momentics/wsgate/protocol"
)

var _ api.Socket = (*Conn)(nil)

// Conn implements api.Socket on top of an api.Transport.
type Conn struct {
	mu sync.Mutex

	cfg       Config
	log       *zap.Logger
	transport api.Transport
	codec     protocol.Codec

	variant  protocol.Variant
	version  string
	url      string
	protocol string

	state     api.ReadyState
	closeSent bool
	pingSeq   uint64
	pings     map[string][]func()

	held      [][]byte // frames sent while connecting
	heldBytes int64

	out        *sendQueue
	events     *dispatcher
	keepalive  *keepalive
	closeTimer *time.Timer
}

// NewConn performs the opening handshake described by hc over tr. The
// handshake response is written before NewConn returns, and any bytes in
// hc.Head are parsed as the first inbound data.
//
// When the handshake is rejected NewConn writes a 400 response, closes tr
// and returns the error together with a Conn that is already CLOSED; its
// event stream carries the ErrorEvent and CloseEvent for the failure.
func NewConn(tr api.Transport, hc *protocol.HandshakeContext, opts ...Option) (*Conn, error) {
	cfg := newConfig(opts)
	c := &Conn{
		cfg:       cfg,
		transport: tr,
		state:     api.Connecting,
		pings:     make(map[string][]func()),
		events:    newDispatcher(),
	}
	if hc != nil {
		c.url = hc.URL
	}
	c.log = cfg.Logger.With(zap.String("url", c.url))

	hs, err := protocol.Negotiate(hc, cfg.codecOptions())
	if err != nil {
		c.log.Info("websocket handshake rejected", zap.Error(err))
		_, _ = tr.Write(protocol.FailureResponse(err))
		c.abort(err)
		return c, err
	}

	c.codec = hs.Codec
	c.variant = hs.Variant
	c.version = hs.Version
	c.protocol = hs.Protocol
	c.log = c.log.With(zap.String("version", c.version))

	if _, err := hs.Response.WriteTo(tr); err != nil {
		terr := api.NewError(api.ErrCodeTransport, "write handshake response").WithCause(err)
		c.log.Warn("websocket handshake write failed", zap.Error(err))
		c.abort(terr)
		return c, terr
	}

	c.out = newSendQueue(tr, c.writeFailed)

	c.mu.Lock()
	if c.codec.IsOpen() {
		c.openLocked()
	}
	c.mu.Unlock()

	if hc != nil && len(hc.Head) > 0 {
		c.receive(hc.Head)
	}
	return c, nil
}

// abort tears down a connection that never got past the handshake.
func (c *Conn) abort(err error) {
	c.state = api.Closed
	c.events.push(api.ErrorEvent{Err: err})
	c.events.push(api.CloseEvent{Code: protocol.CloseAbnormalClosure})
	c.out = newSendQueue(c.transport, nil)
	c.out.drain()
}

// Serve runs the read loop until the connection is closed or the transport
// fails. Cancelling ctx closes the connection with 1001 going away. Serve
// returns nil when the connection ended on its own terms and the transport
// error otherwise.
func (c *Conn) Serve(ctx context.Context) error {
	if c.ReadyState() == api.Closed {
		return api.ErrConnectionClosed
	}
	stop := context.AfterFunc(ctx, func() {
		c.closeWith(protocol.CloseGoingAway, "")
	})
	defer stop()

	bufs := pool.ForSize(c.cfg.ReadBufferSize)
	buf := bufs.GetBuffer()
	defer bufs.PutBuffer(buf)

	for {
		n, err := c.transport.Read(buf)
		if n > 0 {
			c.receive(buf[:n])
		}
		if err != nil {
			if c.transportClosed(err) && !isEOF(err) {
				return err
			}
			return nil
		}
		if c.ReadyState() == api.Closed {
			return nil
		}
	}
}

// receive hands one transport read to the codec and acts on what it decoded.
func (c *Conn) receive(data []byte) {
	var callbacks []func()

	c.mu.Lock()
	if c.state == api.Closed {
		c.mu.Unlock()
		return
	}
	reply, items, err := c.codec.Parse(data)
	if reply != nil {
		_ = c.out.push(reply, false)
	}
	if c.state == api.Connecting && c.codec.IsOpen() {
		c.openLocked()
	}
	for _, d := range items {
		if c.state == api.Closed {
			break
		}
		callbacks = append(callbacks, c.handleLocked(d)...)
	}
	if err != nil && c.state != api.Closed {
		c.failLocked(err)
	}
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// handleLocked applies one decoded item and returns the pong callbacks it
// released.
func (c *Conn) handleLocked(d protocol.Decoded) []func() {
	switch d.Type {
	case protocol.DecodedMessage:
		if c.state == api.Open {
			c.events.push(api.MessageEvent{Kind: d.Kind, Data: d.Payload})
		}

	case protocol.DecodedPing:
		if c.state != api.Open {
			return nil
		}
		if frame, err := c.codec.Pong(d.Payload); err == nil {
			_ = c.out.push(frame, false)
		}

	case protocol.DecodedPong:
		key := string(d.Payload)
		callbacks := c.pings[key]
		delete(c.pings, key)
		return callbacks

	case protocol.DecodedClose:
		c.log.Debug("peer closed websocket", zap.Int("code", d.Code), zap.String("reason", d.Reason))
		if !c.closeSent {
			c.sendCloseLocked(d.Code, d.Reason)
		}
		c.finishLocked(d.Code, d.Reason, true)
	}
	return nil
}

func (c *Conn) openLocked() {
	if c.state != api.Connecting {
		return
	}
	c.state = api.Open
	c.log.Debug("websocket open", zap.String("protocol", c.protocol))
	c.events.push(api.OpenEvent{})

	for _, frame := range c.held {
		_ = c.out.push(frame, true)
	}
	c.held, c.heldBytes = nil, 0

	if c.cfg.PingInterval > 0 {
		c.keepalive = startKeepalive(c.cfg.PingInterval, c.keepaliveTick)
	}
}

func (c *Conn) keepaliveTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != api.Open {
		return
	}
	c.pingSeq++
	frame, err := c.codec.Ping([]byte(strconv.FormatUint(c.pingSeq, 10)))
	if err != nil {
		// legacy revisions have no ping
		return
	}
	_ = c.out.push(frame, false)
}

// failLocked handles a protocol violation reported by the codec.
func (c *Conn) failLocked(err error) {
	code := api.CloseCodeOf(err)
	if code == 0 {
		code = protocol.CloseProtocolError
	}
	c.log.Info("websocket protocol violation", zap.Int("code", code), zap.Error(err))
	c.events.push(api.ErrorEvent{Err: err})
	if c.variant == protocol.VariantModern && !c.closeSent {
		c.sendCloseLocked(code, "")
	}
	c.finishLocked(code, "", false)
}

// transportClosed handles the end of the inbound stream and reports whether
// it changed the connection state.
func (c *Conn) transportClosed(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == api.Closed {
		return false
	}
	if !isEOF(err) {
		c.log.Warn("websocket transport failed", zap.Error(err))
		c.events.push(api.ErrorEvent{
			Err: api.NewError(api.ErrCodeTransport, "transport failed").WithCause(err),
		})
	}
	if c.variant == protocol.VariantModern && !c.closeSent {
		// 1006 is reserved for the event and never goes on the wire
		c.sendCloseLocked(protocol.CloseGoingAway, "")
	}
	c.finishLocked(protocol.CloseAbnormalClosure, "", false)
	return true
}

func (c *Conn) writeFailed(err error) {
	c.transportClosed(err)
}

func (c *Conn) sendCloseLocked(code int, reason string) {
	c.closeSent = true
	if frame := c.codec.CloseFrame(code, reason); frame != nil {
		_ = c.out.push(frame, false)
	}
}

// finishLocked moves the connection to CLOSED and emits the final event.
func (c *Conn) finishLocked(code int, reason string, clean bool) {
	if c.state == api.Closed {
		return
	}
	c.keepalive.cancel()
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	c.state = api.Closed
	c.held, c.heldBytes = nil, 0
	c.pings = nil
	c.out.drain()

	c.log.Debug("websocket closed", zap.Int("code", code), zap.Bool("clean", clean))
	c.events.push(api.CloseEvent{Code: code, Reason: reason, WasClean: clean})
}

// Send frames and queues one message. Messages sent while the connection is
// still connecting are delivered once it opens.
func (c *Conn) Send(kind api.MessageKind, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == api.Closing || c.state == api.Closed {
		return api.ErrConnectionClosed
	}
	frame, err := c.codec.Frame(kind, data)
	if err != nil {
		return err
	}
	if c.state == api.Connecting {
		c.held = append(c.held, frame)
		c.heldBytes += int64(len(frame))
		return nil
	}
	return c.out.push(frame, true)
}

// SendText is shorthand for Send(api.Text, []byte(s)).
func (c *Conn) SendText(s string) error {
	return c.Send(api.Text, []byte(s))
}

// Ping sends a ping carrying payload. done, when non-nil, runs on the first
// pong that echoes the same payload.
func (c *Conn) Ping(payload []byte, done func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != api.Open {
		return api.ErrConnectionClosed
	}
	frame, err := c.codec.Ping(payload)
	if err != nil {
		return err
	}
	if err := c.out.push(frame, false); err != nil {
		return err
	}
	if done != nil {
		key := string(payload)
		c.pings[key] = append(c.pings[key], done)
	}
	return nil
}

// Close starts the closing handshake. Code 0 means 1000; otherwise code
// must be 1000 or in the 3000-4999 application range. reason must be valid
// UTF-8 of at most 123 bytes so it fits the close frame unchanged.
func (c *Conn) Close(code int, reason string) error {
	if code == 0 {
		code = protocol.CloseNormalClosure
	}
	if code != protocol.CloseNormalClosure && (code < 3000 || code > 4999) {
		return api.ErrInvalidArgument
	}
	if !utf8.ValidString(reason) || len(reason) > protocol.MaxControlPayloadLen-2 {
		return api.ErrInvalidArgument
	}
	c.closeWith(code, reason)
	return nil
}

func (c *Conn) closeWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case api.Closing, api.Closed:
		return
	case api.Connecting:
		c.finishLocked(code, reason, false)
		return
	}

	c.state = api.Closing
	c.sendCloseLocked(code, reason)
	if c.cfg.CloseGracePeriod <= 0 || c.variant != protocol.VariantModern {
		c.finishLocked(code, reason, true)
		return
	}
	c.closeTimer = time.AfterFunc(c.cfg.CloseGracePeriod, c.closeTimedOut)
}

func (c *Conn) closeTimedOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != api.Closing {
		return
	}
	c.log.Debug("websocket close not acknowledged")
	c.finishLocked(protocol.CloseAbnormalClosure, "", false)
}

// ReadyState reports the lifecycle state.
func (c *Conn) ReadyState() api.ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BufferedAmount is the number of bytes of queued message frames not yet
// written to the transport.
func (c *Conn) BufferedAmount() int64 {
	c.mu.Lock()
	held := c.heldBytes
	c.mu.Unlock()
	return held + c.out.bufferedAmount()
}

func (c *Conn) Protocol() string          { return c.protocol }
func (c *Conn) URL() string               { return c.url }
func (c *Conn) Version() string           { return c.version }
func (c *Conn) Variant() protocol.Variant { return c.variant }
func (c *Conn) Events() <-chan api.Event  { return c.events.events() }

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, api.ErrTransportClosed)
}
