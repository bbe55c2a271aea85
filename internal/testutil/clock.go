package testutil

import (
	"sync"
	"time"
)

// FixedClock provides a thread-safe deterministic wall clock for tests.
//
// Every call to Now advances the clock by a fixed step, so repeated
// operations get distinct but reproducible timestamps. The same
// scenario produces byte-identical timestamps on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFixedClock creates a clock starting at the given instant.
// A zero step means the clock stands still.
func NewFixedClock(start time.Time, step time.Duration) *FixedClock {
	return &FixedClock{now: start, step: step}
}

// Now returns the current instant and advances the clock by one step.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Current returns the next instant Now would return, without advancing.
func (c *FixedClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to the given instant.
//
// This enables the same scenario to run multiple times with identical
// timestamps.
func (c *FixedClock) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = start
}
