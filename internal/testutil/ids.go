package testutil

import (
	"fmt"
	"sync"
)

// FixedIDs generates sequential instance ids for tests.
//
// The same scenario with the same FixedIDs produces byte-identical
// instance ids, which enables golden snapshot comparison. Production
// code uses UUIDv7 ids instead.
//
// Thread-safety: Generate is safe for concurrent use via internal mutex.
type FixedIDs struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewFixedIDs creates a generator producing "<prefix>-0001",
// "<prefix>-0002", and so on.
//
// If prefix is empty, "inst" is used.
func NewFixedIDs(prefix string) *FixedIDs {
	if prefix == "" {
		prefix = "inst"
	}
	return &FixedIDs{prefix: prefix}
}

// Generate returns the next sequential id.
//
// Implements the contract.IDGenerator interface.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%04d", g.prefix, g.next)
}

// Reset rewinds the sequence so the next id is "<prefix>-0001" again.
func (g *FixedIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next = 0
}
