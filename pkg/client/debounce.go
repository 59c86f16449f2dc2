package client

import (
	"sync"
	"time"
)

// Debouncer runs only the last function handed to Trigger, once delay has
// passed without another Trigger.
type Debouncer struct {
	clock Clock
	delay time.Duration

	mu      sync.Mutex
	timer   Timer
	pending func()
	seq     int
}

func NewDebouncer(clock Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = RealClock
	}
	return &Debouncer{clock: clock, delay: delay}
}

func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = f
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq) })
}

// fire runs the pending function if no Trigger happened since seq was scheduled.
// A negative seq always runs.
func (d *Debouncer) fire(seq int) {
	d.mu.Lock()
	if seq >= 0 && seq != d.seq {
		d.mu.Unlock()
		return
	}
	f := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if f != nil {
		f()
	}
}

// Flush runs the pending function now, if any
func (d *Debouncer) Flush() {
	d.fire(-1)
}

// Cancel drops the pending function
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
	d.seq++
}
