package bridge

import "time"

// clock is a monotonic counter rebased to zero at construction. Go's
// time.Time carries a monotonic reading internally, so time.Since against a
// start captured at construction gives us this for free without touching
// CLOCK_MONOTONIC directly.
type clock struct {
	start time.Time
}

func newClock() clock {
	return clock{start: time.Now()}
}

// nowMS returns milliseconds elapsed since the clock was created.
func (c clock) nowMS() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}
