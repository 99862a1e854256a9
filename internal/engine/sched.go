package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Handle identifies a scheduled timer. Handles are unique for the
// lifetime of a Scheduler and never reused.
type Handle int64

// Scheduler converts game-time delays into real-time timers under a
// mutable speed multiplier.
//
// A delay scheduled at speed S arms a real timer at gameDelay/S.
// SetSpeed re-arms every outstanding timer against its remaining game
// time, so a speed change mid-wait neither loses nor double-fires a
// timer. A zero (or negative) delay still defers to the timer goroutine
// rather than firing synchronously, avoiding re-entrant emit-during-emit
// hazards.
type Scheduler struct {
	tk     Timekeeper
	nextID atomic.Int64

	mu     sync.Mutex
	speed  float64
	timers map[Handle]*timerEntry
}

// timerEntry is the live form of a pending timer. remaining, speed and
// armedAt are refreshed on every re-arm, so RemainingGame stays a pure
// function of this record plus the current time.
type timerEntry struct {
	fire      func()
	remaining time.Duration // game time left at last arm
	speed     float64       // speed multiplier at last arm
	armedAt   time.Time
	timer     Timer
}

// NewScheduler creates a scheduler at the given speed multiplier.
// Non-positive speeds fall back to 1.
func NewScheduler(tk Timekeeper, speed float64) *Scheduler {
	if speed <= 0 {
		speed = 1
	}
	return &Scheduler{
		tk:     tk,
		speed:  speed,
		timers: make(map[Handle]*timerEntry),
	}
}

// Speed returns the current speed multiplier.
func (s *Scheduler) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Schedule arms a timer that calls fire after gameDelay of game time at
// the current speed. Negative delays are treated as zero.
func (s *Scheduler) Schedule(gameDelay time.Duration, fire func()) Handle {
	if gameDelay < 0 {
		gameDelay = 0
	}
	h := Handle(s.nextID.Add(1))

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &timerEntry{
		fire:      fire,
		remaining: gameDelay,
		speed:     s.speed,
		armedAt:   s.tk.Now(),
	}
	s.timers[h] = e
	e.timer = s.tk.AfterFunc(realDelay(gameDelay, s.speed), func() { s.fireHandle(h) })
	return h
}

// Cancel stops a pending timer. Reports whether the timer was still
// pending (false once fired or already cancelled).
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	e, ok := s.timers[h]
	if ok {
		delete(s.timers, h)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	e.timer.Stop()
	return true
}

// CancelAll stops every pending timer. Used wholesale when the player
// logs out or sleeps, so stale timers never fire against replaced state.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	timers := s.timers
	s.timers = make(map[Handle]*timerEntry)
	s.mu.Unlock()

	for _, e := range timers {
		e.timer.Stop()
	}
}

// SetSpeed changes the speed multiplier and re-arms every pending timer
// for its remaining game time at the new speed. Non-positive speeds
// fall back to 1.
func (s *Scheduler) SetSpeed(speed float64) {
	if speed <= 0 {
		speed = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tk.Now()
	s.speed = speed
	for h, e := range s.timers {
		if !e.timer.Stop() {
			// Already firing; fireHandle owns it from here.
			continue
		}
		e.remaining = RemainingGame(e.remaining, e.speed, e.armedAt, now)
		e.speed = speed
		e.armedAt = now
		e.timer = s.tk.AfterFunc(realDelay(e.remaining, speed), func() { s.fireHandle(h) })
	}
}

// RemainingGame returns the game time left before the handle fires.
// Reports false when the timer already fired or was cancelled.
func (s *Scheduler) RemainingGame(h Handle) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[h]
	if !ok {
		return 0, false
	}
	return RemainingGame(e.remaining, e.speed, e.armedAt, s.tk.Now()), true
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fireHandle(h Handle) {
	s.mu.Lock()
	e, ok := s.timers[h]
	if ok {
		delete(s.timers, h)
	}
	s.mu.Unlock()

	// A concurrent Cancel or SetSpeed re-arm may have claimed the entry.
	if ok {
		e.fire()
	}
}

// RemainingGame computes the game time left on a timer armed at armedAt
// for gameRemaining of game time at the given speed. Pure, so save and
// restore math is testable without timers. Never negative.
func RemainingGame(gameRemaining time.Duration, speed float64, armedAt, now time.Time) time.Duration {
	elapsedGame := time.Duration(float64(now.Sub(armedAt)) * speed)
	rem := gameRemaining - elapsedGame
	if rem < 0 {
		return 0
	}
	return rem
}

// RestoreDelay computes the reschedule delay for a pending event loaded
// from a save: the remaining delay plus a safety buffer, floored so a
// restored timer never fires during load. The constants are playability
// heuristics, configurable through config.
func RestoreDelay(remaining, buffer, floor time.Duration) time.Duration {
	d := remaining + buffer
	if d < floor {
		return floor
	}
	return d
}

func realDelay(game time.Duration, speed float64) time.Duration {
	if game <= 0 {
		return 0
	}
	return time.Duration(float64(game) / speed)
}
