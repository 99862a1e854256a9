package engine

import "time"

// Timer is an armed timer that can be stopped before it fires.
// Stop reports whether it prevented the firing.
type Timer interface {
	Stop() bool
}

// Timekeeper abstracts wall-clock access so scheduler behavior is
// testable without real timers. Production uses WallClock; tests use
// testutil.FakeClock.
type Timekeeper interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// WallClock returns the real-time Timekeeper.
func WallClock() Timekeeper { return wallClock{} }
