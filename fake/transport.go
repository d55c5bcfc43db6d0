// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the transport contract.

package fake

import (
	"io"
	"sync"

	"github.com/momentics/wsgate/api"
)

var _ api.Transport = (*Transport)(nil)

// Transport is an in-memory api.Transport. Reads are scripted with Feed and
// Hangup; writes are captured and can be inspected with Written.
type Transport struct {
	mu         sync.Mutex
	written    []byte
	leftover   []byte
	reads      chan []byte
	hangupErr  error
	hangupOnce sync.Once
	closed     bool
	closedCh   chan struct{}
	closeOnce  sync.Once
	writeError error
	closeError error
}

// NewTransport creates a new fake transport with default settings.
func NewTransport() *Transport {
	return &Transport{
		reads:    make(chan []byte, 64),
		closedCh: make(chan struct{}),
	}
}

// Read implements api.Transport.Read. It blocks until data is fed, the peer
// hangs up, or the transport is closed.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	if len(t.leftover) > 0 {
		n := copy(p, t.leftover)
		t.leftover = t.leftover[n:]
		t.mu.Unlock()
		return n, nil
	}
	t.mu.Unlock()

	select {
	case data, ok := <-t.reads:
		if !ok {
			t.mu.Lock()
			err := t.hangupErr
			t.mu.Unlock()
			return 0, err
		}
		n := copy(p, data)
		if n < len(data) {
			t.mu.Lock()
			t.leftover = append(t.leftover, data[n:]...)
			t.mu.Unlock()
		}
		return n, nil
	case <-t.closedCh:
		return 0, api.ErrTransportClosed
	}
}

// Write implements api.Transport.Write.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, api.ErrTransportClosed
	}
	if t.writeError != nil {
		return 0, t.writeError
	}
	t.written = append(t.written, p...)
	return len(p), nil
}

// Close implements api.Transport.Close.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.closeOnce.Do(func() { close(t.closedCh) })
	return t.closeError
}

// Feed queues data to be returned by a future Read, as one read event.
func (t *Transport) Feed(data []byte) {
	t.reads <- append([]byte(nil), data...)
}

// Hangup makes Read return err (io.EOF when nil) once fed data is drained.
func (t *Transport) Hangup(err error) {
	if err == nil {
		err = io.EOF
	}
	t.hangupOnce.Do(func() {
		t.mu.Lock()
		t.hangupErr = err
		t.mu.Unlock()
		close(t.reads)
	})
}

// Written returns a copy of everything written so far.
func (t *Transport) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.written...)
}

// ClearWritten discards captured writes.
func (t *Transport) ClearWritten() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = nil
}

// IsClosed reports whether Close has been called.
func (t *Transport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// SetWriteError configures the transport to fail every Write with err.
func (t *Transport) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeError = err
}

// SetCloseError configures the transport to return an error on Close.
func (t *Transport) SetCloseError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeError = err
}
