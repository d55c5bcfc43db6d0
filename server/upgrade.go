// File: server/upgrade.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP glue: recognises upgrade requests, derives the connection URL and
// hands the hijacked socket to a Conn.

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/momentics/wsgate/api"
	"github.com/momentics/wsgate/protocol"
	"github.com/momentics/wsgate/transport"
)

// MaxHandshakeHeadersSize caps the combined length of upgrade request headers.
const MaxHandshakeHeadersSize = 8192

var (
	ErrNotWebSocket       = errors.New("not a websocket upgrade request")
	ErrHeadersTooLarge    = errors.New("handshake headers too large")
	ErrHijackNotSupported = errors.New("response writer does not support hijacking")
)

// IsWebSocket reports whether r asks for a WebSocket upgrade.
func IsWebSocket(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		headerContainsToken(r.Header, "Connection", "upgrade") &&
		strings.EqualFold(strings.TrimSpace(r.Header.Get("Upgrade")), "websocket")
}

// IsSecure reports whether the client reached us over TLS. A proxy's
// X-Forwarded-Proto header takes precedence over the local TLS state.
func IsSecure(r *http.Request) bool {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto == "https"
	}
	return r.TLS != nil
}

// RequestURL returns the ws: or wss: URL the client connected to.
func RequestURL(r *http.Request) string {
	scheme := "ws:"
	if IsSecure(r) {
		scheme = "wss:"
	}
	return scheme + "//" + r.Host + r.URL.RequestURI()
}

// Upgrade takes over the connection behind w and starts serving it. The
// returned Conn is already reading; its events must be drained by the
// caller. Requests that are not upgrades get a 400 and ErrNotWebSocket; a
// rejected handshake is answered and closed, and only its error returned.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ...Option) (*Conn, error) {
	if !IsWebSocket(r) {
		http.Error(w, ErrNotWebSocket.Error(), http.StatusBadRequest)
		return nil, ErrNotWebSocket
	}
	if headersSize(r.Header) > MaxHandshakeHeadersSize {
		http.Error(w, ErrHeadersTooLarge.Error(), http.StatusRequestHeaderFieldsTooLarge)
		return nil, ErrHeadersTooLarge
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, ErrHijackNotSupported.Error(), http.StatusInternalServerError)
		return nil, ErrHijackNotSupported
	}
	netConn, brw, err := hj.Hijack()
	if err != nil {
		return nil, api.NewError(api.ErrCodeTransport, "hijack failed").WithCause(err)
	}

	// bytes the HTTP server read past the request head, e.g. hixie-76 key3
	var head []byte
	if n := brw.Reader.Buffered(); n > 0 {
		head, _ = brw.Reader.Peek(n)
		head = append([]byte(nil), head...)
	}

	hc := &protocol.HandshakeContext{
		Header: r.Header,
		URL:    RequestURL(r),
		Head:   head,
	}
	c, err := NewConn(transport.NewNetConn(netConn), hc, opts...)
	if err != nil {
		go drain(c)
		return nil, err
	}
	go func() {
		_ = c.Serve(context.Background())
	}()
	return c, nil
}

// headerContainsToken checks if headerName contains the given token, case-insensitive.
func headerContainsToken(h http.Header, headerName, token string) bool {
	for _, v := range h.Values(headerName) {
		for _, p := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(p), token) {
				return true
			}
		}
	}
	return false
}

func headersSize(h http.Header) int {
	total := 0
	for k, vs := range h {
		total += len(k)
		for _, v := range vs {
			total += len(v)
		}
	}
	return total
}
