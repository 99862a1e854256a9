// Package testutil provides deterministic test doubles for the engine's
// time sources.
package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/darkwire-sim/darkwire/internal/engine"
)

// FakeClock is a manually advanced Timekeeper. Timers fire
// synchronously inside Advance, in deadline order (creation order for
// equal deadlines), so scheduler tests are fully deterministic.
//
// Callbacks run with no FakeClock lock held, so a firing timer may
// schedule further timers; ones due within the same Advance window fire
// in the same call.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	nextSeq int64
	timers  []*fakeTimer
}

type fakeTimer struct {
	clock    *FakeClock
	seq      int64
	deadline time.Time
	fn       func()
	fired    bool
}

// NewFakeClock creates a fake clock at a fixed, readable base time.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers fn to run once the clock has advanced d past the
// current fake time. A non-positive d fires on the next Advance call,
// never synchronously.
func (c *FakeClock) AfterFunc(d time.Duration, fn func()) engine.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSeq++
	t := &fakeTimer{
		clock:    c,
		seq:      c.nextSeq,
		deadline: c.now.Add(d),
		fn:       fn,
	}
	c.timers = append(c.timers, t)
	return t
}

// Stop removes the timer. Reports whether it prevented the firing.
func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.fired {
		return false
	}
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d, firing every due timer in
// deadline order. Advance(0) fires timers armed with a zero delay.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	c.mu.Lock()
	if target.After(c.now) {
		c.now = target
	}
	c.mu.Unlock()
}

// popDue removes and returns the earliest timer due at or before
// target, advancing the fake time to its deadline. Returns nil when
// nothing is due.
func (c *FakeClock) popDue(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})

	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}

	t := c.timers[0]
	c.timers = c.timers[1:]
	t.fired = true
	if t.deadline.After(c.now) {
		c.now = t.deadline
	}
	return t
}

// PendingTimers returns the number of armed timers. Diagnostic for
// leak-style assertions in tests.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
