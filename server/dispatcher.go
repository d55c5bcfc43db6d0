// File: server/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// dispatcher delivers connection events to the application in the order
// they were produced. Producers never block: events wait in an unbounded
// FIFO until the application receives them.

package server

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/wsgate/api"
)

type dispatcher struct {
	mu    sync.Mutex
	q     *queue.Queue
	final bool // a CloseEvent has been queued
	wake  chan struct{}
	out   chan api.Event
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		q:    queue.New(),
		wake: make(chan struct{}, 1),
		out:  make(chan api.Event),
	}
	go d.run()
	return d
}

// push queues ev. Anything pushed after a CloseEvent is dropped.
func (d *dispatcher) push(ev api.Event) {
	d.mu.Lock()
	if d.final {
		d.mu.Unlock()
		return
	}
	d.q.Add(ev)
	if _, ok := ev.(api.CloseEvent); ok {
		d.final = true
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) events() <-chan api.Event {
	return d.out
}

func (d *dispatcher) run() {
	for {
		d.mu.Lock()
		for d.q.Length() == 0 {
			if d.final {
				d.mu.Unlock()
				close(d.out)
				return
			}
			d.mu.Unlock()
			<-d.wake
			d.mu.Lock()
		}
		ev := d.q.Remove().(api.Event)
		d.mu.Unlock()

		d.out <- ev
	}
}
