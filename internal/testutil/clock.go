// Package testutil holds deterministic stand-ins shared by package tests:
// a stepping wall clock, a manually driven ticker, and a scripted terminal.
package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the base time used by NewDeterministicClock when given a
// zero time.
var DefaultEpoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe wall clock that advances by a fixed
// step on every reading.
//
// Stores and services take a func() time.Time; pass clock.Now. Two readings
// never return the same instant, so orderings by timestamp are total and
// repeatable across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int64
}

// NewDeterministicClock creates a clock starting at base that advances by step.
//
// The first call to Now() returns base. A zero base means DefaultEpoch and a
// non-positive step means one second.
func NewDeterministicClock(base time.Time, step time.Duration) *DeterministicClock {
	if base.IsZero() {
		base = DefaultEpoch
	}
	if step <= 0 {
		step = time.Second
	}
	return &DeterministicClock{base: base.UTC(), step: step}
}

// Now returns the current reading and advances the clock by one step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Current returns the reading the next Now() call will produce, without
// advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(time.Duration(c.n) * c.step)
}

// Reset rewinds the clock so the next Now() returns base again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
