// Package audit emits lifecycle events to the audit collaborator as a
// fire-and-forget side channel. Recording never blocks and never fails
// a lifecycle transition; the collaborator owns retry and fallback.
package audit

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind names an audited lifecycle transition.
type EventKind string

const (
	EventCreated   EventKind = "instance.created"
	EventUpdated   EventKind = "instance.updated"
	EventUpgraded  EventKind = "instance.upgraded"
	EventCompleted EventKind = "instance.completed"
	EventArchived  EventKind = "instance.archived"
	EventPublished EventKind = "catalog.published"
)

// Event is one audit record. Seq is a monotonic logical sequence
// number, so event order is explicit and independent of wall-clock
// resolution.
type Event struct {
	Seq        int64             `json:"seq"`
	Kind       EventKind         `json:"kind"`
	InstanceID string            `json:"instance_id,omitempty"`
	TenantID   string            `json:"tenant_id,omitempty"`
	At         time.Time         `json:"at"`
	Details    map[string]string `json:"details,omitempty"`
}

// Recorder receives audit events. Implementations must not block the
// caller.
type Recorder interface {
	Record(ev Event)
}

// Clock is a monotonic logical clock for event sequencing.
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// LogRecorder buffers events on a channel and drains them to slog from
// its own goroutine. When the buffer is full the event is dropped and
// counted instead of blocking the lifecycle transition.
type LogRecorder struct {
	clock   Clock
	ch      chan Event
	done    chan struct{}
	dropped atomic.Int64
}

// DefaultBuffer is the default event buffer size for LogRecorder.
const DefaultBuffer = 256

// NewLogRecorder starts a recorder draining into slog.
func NewLogRecorder(buffer int) *LogRecorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	r := &LogRecorder{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record implements Recorder. Never blocks.
func (r *LogRecorder) Record(ev Event) {
	ev.Seq = r.clock.Next()
	select {
	case r.ch <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full buffer.
func (r *LogRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops the drain goroutine after flushing buffered events.
func (r *LogRecorder) Close() {
	close(r.ch)
	<-r.done
}

func (r *LogRecorder) drain() {
	defer close(r.done)
	for ev := range r.ch {
		attrs := []any{
			"seq", ev.Seq,
			"kind", string(ev.Kind),
			"instance", ev.InstanceID,
			"tenant", ev.TenantID,
		}
		for k, v := range ev.Details {
			attrs = append(attrs, k, v)
		}
		slog.Info("audit", attrs...)
	}
}

// MemoryRecorder captures events for tests.
// Thread-safe via internal mutex.
type MemoryRecorder struct {
	clock  Clock
	mu     sync.Mutex
	events []Event
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record implements Recorder.
func (m *MemoryRecorder) Record(ev Event) {
	ev.Seq = m.clock.Next()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a snapshot of everything recorded so far.
func (m *MemoryRecorder) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
