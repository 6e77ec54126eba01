// Package syncd keeps the store and the interchange file converged: a
// debounced export scheduler coalesces mutation bursts into one write,
// a hash-gated trigger imports the file when someone else changed it, and
// a file watcher drives the trigger in daemon mode.
package syncd

import (
	"sync"
	"time"
)

// Debouncer batches rapid triggers into a single action after a quiet
// period. Thread-safe for concurrent triggers.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
	action   func()
	seq      uint64 // invalidates timers superseded by a later trigger
}

// NewDebouncer creates a debouncer that runs action once the duration has
// passed since the last trigger.
func NewDebouncer(duration time.Duration, action func()) *Debouncer {
	return &Debouncer{
		duration: duration,
		action:   action,
	}
}

// Trigger arms (or re-arms) the quiescence timer. Repeated calls reset
// the timer so the action fires once per burst.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.seq++
	currentSeq := d.seq

	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		if d.seq != currentSeq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		// Run the action without the lock so a slow or panicking action
		// cannot wedge subsequent triggers.
		d.mu.Unlock()

		d.action()
	})
}

// Cancel stops any pending action. Safe to call with nothing pending.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
