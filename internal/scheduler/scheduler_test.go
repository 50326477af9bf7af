package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func TestManualAfterAndEvery(t *testing.T) {
	m := NewManual(start)
	var polls, restarts int
	m.Every(FillPoll, 60*time.Second, func() { polls++ })
	m.After(CycleRestart, 180*time.Second, func() { restarts++ })
	assert.Equal(t, []string{CycleRestart, FillPoll}, m.Names())

	m.Advance(59 * time.Second)
	assert.Equal(t, 0, polls)

	m.Advance(time.Second)
	assert.Equal(t, 1, polls)

	m.Advance(2 * time.Minute)
	assert.Equal(t, 3, polls)
	assert.Equal(t, 1, restarts)
	assert.False(t, m.Active(CycleRestart))
	assert.True(t, m.Active(FillPoll))
	assert.Equal(t, start.Add(3*time.Minute), m.Now())
}

func TestManualCancelAndReplace(t *testing.T) {
	m := NewManual(start)
	var fired []string
	m.After("x", time.Minute, func() { fired = append(fired, "old") })
	m.After("x", 2*time.Minute, func() { fired = append(fired, "new") })
	m.After("y", time.Minute, func() { fired = append(fired, "y") })
	m.Cancel("y")

	m.Advance(5 * time.Minute)
	assert.Equal(t, []string{"new"}, fired)
}

func TestManualCallbackCanReschedule(t *testing.T) {
	m := NewManual(start)
	var n int
	var arm func()
	arm = func() {
		n++
		if n < 3 {
			m.After("chain", time.Minute, arm)
		}
	}
	m.After("chain", time.Minute, arm)
	m.Advance(10 * time.Minute)
	assert.Equal(t, 3, n)

	m.Every("p", time.Minute, func() {})
	m.Stop()
	assert.Empty(t, m.Names())
}

func TestRealScheduler(t *testing.T) {
	r := NewReal()
	defer r.Stop()

	var once, every atomic.Int32
	r.After("once", 10*time.Millisecond, func() { once.Add(1) })
	r.Every("every", 5*time.Millisecond, func() { every.Add(1) })
	assert.True(t, r.Active("once"))

	assert.Eventually(t, func() bool { return once.Load() == 1 && every.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, r.Active("once"))

	r.Cancel("every")
	assert.False(t, r.Active("every"))

	r.After("never", time.Hour, func() { once.Add(1) })
	r.Cancel("never")
	assert.Equal(t, int32(1), once.Load())
}
