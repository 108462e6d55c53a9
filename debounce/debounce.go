// Package debounce holds back a rapidly changing input until it has been
// quiet for a fixed interval.
//
// A Debouncer commits its initial value immediately, so a field that starts
// out non-empty is visible without waiting. Every later Set restarts the quiet
// period; only the last value of a burst is committed.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet period used when New is given delay <= 0.
const DefaultDelay = 500 * time.Millisecond

type Option[T comparable] func(*Debouncer[T])

// WithOnCommit registers fn to run whenever the committed value changes.
// fn runs on the timer goroutine (or the Flush caller) without locks held.
func WithOnCommit[T comparable](fn func(T)) Option[T] {
	return func(d *Debouncer[T]) { d.onCommit = fn }
}

// Debouncer is safe for concurrent use.
type Debouncer[T comparable] struct {
	delay    time.Duration
	onCommit func(T)

	mu         sync.Mutex
	committed  T
	pending    T
	hasPending bool
	timer      *time.Timer
	seq        uint64 // bumped on every Set; a timer only commits its own seq
	closed     bool
}

func New[T comparable](initial T, delay time.Duration, opts ...Option[T]) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	d := &Debouncer[T]{delay: delay, committed: initial}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Set records v as the latest input and restarts the quiet period.
// Calls after Close are ignored.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.seq++
	d.pending = v
	d.hasPending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Value returns the last committed value.
func (d *Debouncer[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committed
}

// Pending returns the value waiting for its quiet period, if any.
func (d *Debouncer[T]) Pending() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending, d.hasPending
}

// Flush commits the pending value now, e.g. when the user presses enter.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.closed || !d.hasPending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.commitLocked()
}

// Close drops any pending value and stops the timer. The committed value stays readable.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.pending, d.hasPending = zero, false
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if d.closed || seq != d.seq || !d.hasPending {
		// superseded by a later Set, flushed, or closed
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.commitLocked()
}

// commitLocked must be called with d.mu held; it releases it.
func (d *Debouncer[T]) commitLocked() {
	v := d.pending
	changed := v != d.committed
	d.committed = v
	var zero T
	d.pending, d.hasPending = zero, false
	cb := d.onCommit
	d.mu.Unlock()

	if changed && cb != nil {
		cb(v)
	}
}
