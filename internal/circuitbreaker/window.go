package circuitbreaker

import "time"

type outcome struct {
	success bool
	at      time.Time
}

// window is a fixed-capacity ring buffer of recent call outcomes. The
// oldest entry is overwritten once the buffer is full. It feeds the
// error-rate metric only and never influences state transitions.
type window struct {
	outcomes []outcome
	next     int
	count    int
}

func newWindow(capacity int) *window {
	return &window{outcomes: make([]outcome, capacity)}
}

func (w *window) record(success bool, at time.Time) {
	w.outcomes[w.next] = outcome{success: success, at: at}
	w.next = (w.next + 1) % len(w.outcomes)
	if w.count < len(w.outcomes) {
		w.count++
	}
}

// stats returns the number of recorded calls and the failure fraction
// within the window.
func (w *window) stats() (total int, errorRate float64) {
	if w.count == 0 {
		return 0, 0
	}

	failures := 0
	for i := 0; i < w.count; i++ {
		if !w.outcomes[i].success {
			failures++
		}
	}

	return w.count, float64(failures) / float64(w.count)
}

func (w *window) clear() {
	w.next = 0
	w.count = 0
}
