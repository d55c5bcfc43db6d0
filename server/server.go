// File: server/server.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server is an http.Handler that upgrades every request it receives and
// hands the resulting connection to a Handler. It keeps track of live
// connections so they can be closed together on shutdown.

package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/wsgate/protocol"
)

var ErrServerClosed = errors.New("server closed")

// Handler serves one upgraded connection. It must drain c.Events(); when it
// returns, a connection that is still open is closed normally.
type Handler interface {
	ServeWebSocket(c *Conn)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(c *Conn)

// ServeWebSocket calls f(c).
func (f HandlerFunc) ServeWebSocket(c *Conn) { f(c) }

// Server upgrades HTTP requests and tracks the connections it created.
type Server struct {
	handler Handler
	opts    []Option
	log     *zap.Logger

	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer builds a Server; opts apply to every connection.
func NewServer(handler Handler, opts ...Option) *Server {
	cfg := newConfig(opts)
	return &Server{
		handler: handler,
		opts:    opts,
		log:     cfg.Logger,
		conns:   make(map[*Conn]struct{}),
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	c, err := Upgrade(w, r, s.opts...)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	if !s.track(c) {
		c.closeWith(protocol.CloseGoingAway, "")
		drain(c)
		return
	}
	defer s.untrack(c)

	s.handler.ServeWebSocket(c)

	_ = c.Close(protocol.CloseNormalClosure, "")
	drain(c)
}

func (s *Server) track(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// Len returns the number of live connections.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting upgrades, closes every live connection with
// 1001 going away and waits for their handlers to return or ctx to end.
// It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.closeWith(protocol.CloseGoingAway, "")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain discards whatever events are left on c.
func drain(c *Conn) {
	for range c.Events() {
	}
}
