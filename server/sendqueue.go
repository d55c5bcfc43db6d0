// File: server/sendqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// sendQueue owns the write side of the transport. Frames are queued without
// blocking the caller and flushed in order by a single writer goroutine;
// bytes still waiting are reported as the connection's bufferedAmount.

package server

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/wsgate/api"
)

type outbound struct {
	data    []byte
	counted bool // contributes to bufferedAmount
}

type sendQueue struct {
	tr      api.Transport
	onError func(error)

	mu       sync.Mutex
	q        *queue.Queue
	draining bool // close the transport once the queue is empty
	failed   bool // a write failed; remaining frames are dropped
	wake     chan struct{}
	done     chan struct{}

	buffered atomic.Int64
}

func newSendQueue(tr api.Transport, onError func(error)) *sendQueue {
	s := &sendQueue{
		tr:      tr,
		onError: onError,
		q:       queue.New(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// push queues a frame. It fails once the queue has started draining.
func (s *sendQueue) push(data []byte, counted bool) error {
	s.mu.Lock()
	if s.draining || s.failed {
		s.mu.Unlock()
		return api.ErrConnectionClosed
	}
	s.q.Add(outbound{data: data, counted: counted})
	if counted {
		s.buffered.Add(int64(len(data)))
	}
	s.mu.Unlock()
	s.signal()
	return nil
}

// drain flushes what is queued, then closes the transport. Idempotent.
func (s *sendQueue) drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.signal()
}

func (s *sendQueue) bufferedAmount() int64 {
	return s.buffered.Load()
}

func (s *sendQueue) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *sendQueue) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for s.q.Length() == 0 || s.failed {
			if s.draining {
				s.mu.Unlock()
				s.tr.Close()
				return
			}
			s.mu.Unlock()
			<-s.wake
			s.mu.Lock()
		}
		item := s.q.Remove().(outbound)
		draining := s.draining
		s.mu.Unlock()

		if _, err := s.tr.Write(item.data); err != nil {
			// frames left in the queue are never flushed and stay counted
			// in bufferedAmount
			s.mu.Lock()
			s.failed = true
			s.mu.Unlock()
			// a failed write while already closing is not escalated
			if !draining && s.onError != nil {
				s.onError(err)
			}
			continue
		}
		if item.counted {
			s.buffered.Add(-int64(len(item.data)))
		}
	}
}
