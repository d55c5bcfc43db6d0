// File: server/keepalive.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sync"
	"time"
)

// keepalive invokes tick every interval until cancelled.
type keepalive struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func startKeepalive(interval time.Duration, tick func()) *keepalive {
	k := &keepalive{
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-k.ticker.C:
				tick()
			case <-k.stop:
				return
			}
		}
	}()
	return k
}

// cancel stops the timer. It does not wait for an in-flight tick, which
// must therefore re-check connection state itself.
func (k *keepalive) cancel() {
	if k == nil {
		return
	}
	k.once.Do(func() {
		k.ticker.Stop()
		close(k.stop)
	})
}
