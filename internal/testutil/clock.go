// Package testutil holds fixture helpers shared by this repository's tests:
// a deterministic clock and a deterministic ID generator, so test fixtures
// never reach for time.Now() or a random UUID. Adapted from the teacher's
// internal/testutil/clock.go (DeterministicClock) and flow.go
// (FixedFlowGenerator), generalized from a logical event sequence number and
// a flow token to timestamps and transaction IDs.
package testutil

import (
	"fmt"
	"sync"
	"time"
)

// SequentialClock returns successive timestamps spaced by Step starting from
// Base, advancing by one Step on every call to Next. Thread-safe, like the
// teacher's DeterministicClock.
type SequentialClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int64
}

// NewSequentialClock returns a clock whose first Next() call returns base
// unchanged, and every subsequent call advances by step.
func NewSequentialClock(base time.Time, step time.Duration) *SequentialClock {
	return &SequentialClock{base: base, step: step}
}

// Next returns the next timestamp in the sequence and advances the cursor.
func (c *SequentialClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Current returns the timestamp Next would return without advancing.
func (c *SequentialClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(time.Duration(c.n) * c.step)
}

// Reset rewinds the clock to its base timestamp.
func (c *SequentialClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}

// SequentialIDGenerator produces "<prefix>-0001", "<prefix>-0002", ... in
// order — deterministic in place of the banking example's UUID-based
// NewTransferID, for tests that need byte-stable, human-readable IDs.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator returns a generator producing "<prefix>-NNNN" IDs
// starting at 0001.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

// Next returns the next ID in the sequence.
func (g *SequentialIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// FixedIDGenerator always returns the same ID, mirroring the teacher's
// FixedFlowGenerator — useful when a test only needs one stable identifier
// repeated across several fixtures.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator returns a generator that always returns id, or
// "test-id-default" if id is empty.
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-id-default"
	}
	return &FixedIDGenerator{id: id}
}

// Next returns the fixed ID.
func (g *FixedIDGenerator) Next() string { return g.id }
