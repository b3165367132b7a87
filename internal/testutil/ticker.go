package testutil

import (
	"sync"
	"time"
)

// tickTimeout bounds how long Tick waits for a receiver.
const tickTimeout = 5 * time.Second

// ManualTicker is a ticker whose ticks are fired by the test.
//
// The channel is unbuffered: Tick returns only once the consumer has received
// the tick. A loop that handles one tick per iteration is therefore known to
// have finished tick N as soon as Tick N+1 returns.
type ManualTicker struct {
	ch       chan time.Time
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewManualTicker creates a ticker that never fires on its own.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
	}
}

// C returns the tick channel.
func (t *ManualTicker) C() <-chan time.Time {
	return t.ch
}

// Stop marks the ticker stopped. Pending and later Tick calls return false.
func (t *ManualTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// Tick delivers one tick and reports whether a receiver took it.
// Returns false if the ticker was stopped or nobody received within 5s.
func (t *ManualTicker) Tick() bool {
	timer := time.NewTimer(tickTimeout)
	defer timer.Stop()

	select {
	case t.ch <- time.Now():
		return true
	case <-t.stopped:
		return false
	case <-timer.C:
		return false
	}
}

// Stopped reports whether Stop has been called.
func (t *ManualTicker) Stopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}
