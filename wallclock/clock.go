// Package wallclock provides the real-time source used to measure how much
// host time a simulation has consumed.
//
// The system clock relies on the monotonic reading carried by time.Now, so
// elapsed durations are not affected by adjustments of the calendar clock.
package wallclock

import (
	"sync"
	"time"
)

// Clock tells the real time and can wake up a waiter after a duration.
type Clock interface {
	// Now returns the current instant. Only differences between instants
	// returned by the same Clock are meaningful.
	Now() time.Time

	// After returns a channel that receives the current instant once d has
	// elapsed.
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

// System returns the Clock backed by the host's monotonic clock.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// Manual is a Clock that only moves when Advance is called. It is safe for
// concurrent use.
type Manual struct {
	lock    sync.Mutex
	now     time.Time
	waiters []waiter
}

// NewManual creates a Manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the instant the clock has been advanced to.
func (c *Manual) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.now
}

// After registers a waiter that fires when the clock has been advanced by at
// least d. A non-positive d fires immediately.
func (c *Manual) After(d time.Duration) <-chan time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}

	c.waiters = append(c.waiters, waiter{deadline: c.now.Add(d), ch: ch})

	return ch
}

// Advance moves the clock forward and fires the waiters whose deadline has
// been reached.
func (c *Manual) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.now = c.now.Add(d)

	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if w.deadline.After(c.now) {
			remaining = append(remaining, w)
			continue
		}

		w.ch <- c.now
	}

	c.waiters = remaining
}

// Waiters returns the number of pending After calls.
func (c *Manual) Waiters() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.waiters)
}
