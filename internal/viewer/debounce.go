package viewer

import "time"

const defaultDebounce = 50 * time.Millisecond

// debouncer coalesces bursts of scroll and visibility activity into a single
// current-page computation. It is owned by the viewer loop and not safe for
// concurrent use.
type debouncer struct {
	window  time.Duration
	timer   *time.Timer
	timerCh <-chan time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	if window <= 0 {
		window = defaultDebounce
	}
	return &debouncer{window: window}
}

// touch (re)starts the window.
func (d *debouncer) touch() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.window)
	d.timerCh = d.timer.C
}

// timerC returns the channel that fires when the window expires. It is nil,
// and blocks forever in a select, while nothing is pending.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
}
