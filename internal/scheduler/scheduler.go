// Package scheduler 提供具名、可取消的定时器；Manual 实现用于测试中推进虚拟时间。
package scheduler

import (
	"sort"
	"sync"
	"time"
)

// 具名定时器
const (
	FillPoll     = "fill-poll"
	CycleRestart = "cycle-restart"
)

// Scheduler 具名定时器集合；同名注册会替换旧定时器。
type Scheduler interface {
	// After 在 d 之后执行一次 fn。
	After(name string, d time.Duration, fn func())
	// Every 每隔 d 执行 fn，直到取消。
	Every(name string, d time.Duration, fn func())
	Cancel(name string)
	Active(name string) bool
	Stop()
}

// Real 基于标准库定时器的实现。
type Real struct {
	mu     sync.Mutex
	timers map[string]*realTimer
}

type realTimer struct {
	timer *time.Timer
	done  chan struct{}
}

func (t *realTimer) stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.done != nil {
		close(t.done)
	}
}

func NewReal() *Real {
	return &Real{timers: make(map[string]*realTimer)}
}

func (r *Real) After(name string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(name)
	rt := &realTimer{}
	rt.timer = time.AfterFunc(d, func() {
		r.mu.Lock()
		if r.timers[name] != rt {
			r.mu.Unlock()
			return
		}
		delete(r.timers, name)
		r.mu.Unlock()
		fn()
	})
	r.timers[name] = rt
}

func (r *Real) Every(name string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(name)
	rt := &realTimer{done: make(chan struct{})}
	r.timers[name] = rt
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-rt.done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (r *Real) Cancel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(name)
}

func (r *Real) cancelLocked(name string) {
	if t, ok := r.timers[name]; ok {
		t.stop()
		delete(r.timers, name)
	}
}

func (r *Real) Active(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[name]
	return ok
}

// Stop 取消全部定时器。
func (r *Real) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.timers {
		r.cancelLocked(name)
	}
}

// Manual 虚拟时间实现：只有调用 Advance 时才触发到期的定时器。
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers map[string]*manualTimer
}

type manualTimer struct {
	due   time.Time
	every time.Duration
	fn    func()
	seq   int
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start, timers: make(map[string]*manualTimer)}
}

// Now 返回虚拟当前时间。
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(name string, d time.Duration, fn func()) {
	m.add(name, d, 0, fn)
}

func (m *Manual) Every(name string, d time.Duration, fn func()) {
	m.add(name, d, d, fn)
}

func (m *Manual) add(name string, d, every time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.timers[name] = &manualTimer{due: m.now.Add(d), every: every, fn: fn, seq: m.seq}
}

func (m *Manual) Cancel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, name)
}

func (m *Manual) Active(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[name]
	return ok
}

func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers = make(map[string]*manualTimer)
}

// Names 返回仍在运行的定时器名（排序）。
func (m *Manual) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]string, 0, len(m.timers))
	for n := range m.timers {
		res = append(res, n)
	}
	sort.Strings(res)
	return res
}

// Advance 推进虚拟时间，按到期顺序同步执行回调。
// 回调执行时不持锁，可以安全地注册或取消定时器。
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		name, t := m.nextDueLocked(target)
		if t == nil {
			break
		}
		m.now = t.due
		if t.every > 0 {
			t.due = t.due.Add(t.every)
		} else {
			delete(m.timers, name)
		}
		fn := t.fn
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

func (m *Manual) nextDueLocked(limit time.Time) (string, *manualTimer) {
	var (
		name string
		best *manualTimer
	)
	for n, t := range m.timers {
		if t.due.After(limit) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			name, best = n, t
		}
	}
	return name, best
}
