package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_AdvanceFiresInDeadlineOrder(t *testing.T) {
	c := NewFakeClock()

	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, c.PendingTimers())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestFakeClock_ZeroDelayDefersToAdvance(t *testing.T) {
	c := NewFakeClock()

	fired := false
	c.AfterFunc(0, func() { fired = true })
	assert.False(t, fired, "zero-delay timer must not fire synchronously")

	c.Advance(0)
	assert.True(t, fired)
}

func TestFakeClock_StopPreventsFiring(t *testing.T) {
	c := NewFakeClock()

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports nothing prevented")

	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeClock_FiredTimerSchedulesAnother(t *testing.T) {
	c := NewFakeClock()

	var order []string
	c.AfterFunc(time.Second, func() {
		order = append(order, "first")
		c.AfterFunc(time.Second, func() { order = append(order, "chained") })
	})

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"first", "chained"}, order, "chained timer due in the same window fires")
}

func TestFakeClock_NowAdvancesToDeadline(t *testing.T) {
	c := NewFakeClock()
	start := c.Now()

	var at time.Time
	c.AfterFunc(5*time.Second, func() { at = c.Now() })

	c.Advance(10 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), at, "callback observes its own deadline")
	assert.Equal(t, start.Add(10*time.Second), c.Now())
}
