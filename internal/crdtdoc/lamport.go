package crdtdoc

import "sync"

// LamportClock orders operations across peers, grounded on the teacher's
// need for a monotone event order (kernel/core/mesh/routing's anti-entropy
// round counters) and directly on other_examples' hertz-board
// crdt_service.go LamportClock, which this mirrors field-for-field.
type LamportClock struct {
	mu      sync.Mutex
	counter uint64
}

// NewLamportClock returns a clock starting at 0.
func NewLamportClock() *LamportClock {
	return &LamportClock{}
}

// Tick increments the local clock and returns the new value, to be
// attached to a locally-originated write.
func (c *LamportClock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return c.counter
}

// Observe folds a timestamp seen on an incoming write into the clock,
// per the standard Lamport update rule, and returns the new local value.
func (c *LamportClock) Observe(remote uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.counter {
		c.counter = remote
	}
	c.counter++
	return c.counter
}

// Current returns the clock's value without advancing it.
func (c *LamportClock) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}
