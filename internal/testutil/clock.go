package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant returned by a DeterministicClock.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe clock for tests that advances one
// second per reading, starting at Epoch.
//
// It can be reset so the same scenario produces identical timestamps.
type DeterministicClock struct {
	mu sync.Mutex
	n  int64
}

// NewDeterministicClock creates a clock whose first reading is Epoch.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Now returns the next instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Epoch.Add(time.Duration(c.n) * time.Second)
	c.n++
	return t
}

// Readings returns how many times Now was called.
func (c *DeterministicClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}

// FixedIDGenerator returns the same run id every time.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator. An empty id yields
// "test-run-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
