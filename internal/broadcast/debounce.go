package broadcast

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Signal calls into one trailing-edge fn
// invocation after a quiet period with no further signals. Deduplication
// of the delivered content is a separate concern handled by Broadcaster.
type Debouncer struct {
	mu    sync.Mutex
	quiet time.Duration
	fn    func()
	timer *time.Timer
	gen   uint64
	stop  bool
}

func NewDebouncer(quiet time.Duration, fn func()) *Debouncer {
	return &Debouncer{quiet: quiet, fn: fn}
}

// Signal schedules fn after the quiet period, restarting the countdown if
// one is already pending.
func (d *Debouncer) Signal() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop {
		return
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen) })
}

// fire runs fn unless a newer signal, cancel, or flush superseded it.
// A stopped timer can still deliver a late callback; the generation
// check makes that harmless.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stop || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Flush cancels any pending countdown and runs fn synchronously.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stop {
		d.mu.Unlock()
		return
	}
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.fn()
}

// Cancel drops any pending countdown without running fn.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Close cancels permanently; further signals are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stop = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
