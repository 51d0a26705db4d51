// Package scheduler coalesces bursts of monitor events into single rescans.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
)

// Debouncer runs fn once per quiet window. Triggers while a run is pending
// are dropped; a trigger while fn is running arms a new window.
type Debouncer struct {
	name  string
	delay time.Duration
	fn    func()
	clock clock.WithDelayedExecution

	scheduled atomic.Bool

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
	running sync.WaitGroup
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithDelay sets the quiet period.
func WithDelay(d time.Duration) Option {
	return func(db *Debouncer) {
		if d > 0 {
			db.delay = d
		}
	}
}

// WithClock sets the clock used for timers.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(db *Debouncer) {
		if c != nil {
			db.clock = c
		}
	}
}

// NewDebouncer returns an idle Debouncer.
func NewDebouncer(name string, fn func(), opts ...Option) *Debouncer {
	db := &Debouncer{
		name:  name,
		delay: defaults.ScanDebounce,
		fn:    fn,
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Name returns the scan class.
func (db *Debouncer) Name() string { return db.name }

// Trigger schedules fn unless a run is already pending. Returns whether
// this call armed the timer.
func (db *Debouncer) Trigger() bool {
	if !db.scheduled.CompareAndSwap(false, true) {
		return false
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.stopped {
		db.scheduled.Store(false)
		return false
	}
	db.running.Add(1)
	db.timer = db.clock.AfterFunc(db.delay, func() {
		// run off the timer goroutine so fake clocks do not call fn under their lock
		go db.fire()
	})
	return true
}

func (db *Debouncer) fire() {
	defer db.running.Done()
	db.scheduled.Store(false)

	db.mu.Lock()
	stopped := db.stopped
	db.mu.Unlock()
	if stopped {
		return
	}
	db.fn()
}

// Pending reports whether a run is scheduled but has not started.
func (db *Debouncer) Pending() bool {
	return db.scheduled.Load()
}

// Stop cancels a pending run and waits for an in-flight one to finish.
// Later triggers are ignored.
func (db *Debouncer) Stop() {
	db.mu.Lock()
	db.stopped = true
	if db.timer != nil && db.timer.Stop() {
		db.running.Done()
	}
	db.mu.Unlock()
	db.running.Wait()
}
