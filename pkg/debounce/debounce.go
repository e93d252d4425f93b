// Package debounce provides a keyed trailing-edge debouncer. Each key owns
// its own timer handle, so cancellation on field blur or view unmount is
// explicit instead of hidden inside closure captures.
package debounce

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Debouncer collapses bursts of calls per key into a single trailing
// invocation after the configured delay of quiescence.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	nextGen uint64
	closed  bool
}

// New creates a debouncer with the given trailing delay.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		entries: make(map[string]*entry),
	}
}

// Call schedules fn to run after the delay has elapsed with no further calls
// for the same key. A call within the window cancels and reschedules the
// pending invocation, so at most one trailing invocation fires per quiescent
// period, carrying the last call's fn.
func (d *Debouncer) Call(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	e, ok := d.entries[key]
	if ok {
		e.timer.Stop()
	} else {
		e = &entry{}
		d.entries[key] = e
	}

	// Generations come from a debouncer-wide counter, never per entry: an
	// entry recreated after Cancel must not hand a stale timer a matching
	// generation.
	d.nextGen++
	gen := d.nextGen
	e.gen = gen
	e.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current, ok := d.entries[key]
		// The generation check closes the race where the timer has already
		// fired but a newer Call or Cancel won the lock first.
		if !ok || current.gen != gen || d.closed {
			d.mu.Unlock()
			return
		}
		delete(d.entries, key)
		d.mu.Unlock()

		fn()
	})
}

// Cancel drops any pending invocation for the key.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
		delete(d.entries, key)
	}
}

// Pending reports whether an invocation is scheduled for the key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}

// Close cancels every pending invocation. The debouncer is unusable
// afterwards; further calls are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	for key, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, key)
	}
}
