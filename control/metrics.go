// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters fed from connection events.

package control

import (
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/momentics/wsgate/api"
)

// Metrics counts connection lifecycle and message events.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	started  time.Time
	updated  time.Time
}

// NewMetrics creates an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		started:  time.Now(),
	}
}

// Add adjusts a counter by delta.
func (m *Metrics) Add(key string, delta int64) {
	m.mu.Lock()
	m.counters[key] += delta
	m.updated = time.Now()
	m.mu.Unlock()
}

// Observe records one connection event.
func (m *Metrics) Observe(ev api.Event) {
	switch e := ev.(type) {
	case api.OpenEvent:
		m.Add("connections.open", 1)
		m.Add("connections.total", 1)
	case api.MessageEvent:
		m.Add("messages."+e.Kind.String(), 1)
		m.Add("bytes.in", int64(len(e.Data)))
	case api.ErrorEvent:
		m.Add("errors."+api.CodeOf(e.Err).String(), 1)
	case api.CloseEvent:
		m.Add("closes."+strconv.Itoa(e.Code), 1)
	}
}

// ConnectionClosed decrements the open connection gauge for a connection
// that had opened.
func (m *Metrics) ConnectionClosed() {
	m.Add("connections.open", -1)
}

// Get returns a single counter.
func (m *Metrics) Get(key string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[key]
}

// GetSnapshot returns the counters together with process information.
func (m *Metrics) GetSnapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.counters)+3)
	for k, v := range m.counters {
		out[k] = v
	}
	out["uptime.seconds"] = int64(time.Since(m.started).Seconds())
	out["platform.cpus"] = runtime.NumCPU()
	out["goroutines"] = runtime.NumGoroutine()
	return out
}
