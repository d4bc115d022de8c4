// Package clock provides the free-running millisecond counter the cycle
// timing is built on. The counter is deliberately uint32 and wraps around
// roughly every 49.7 days; all comparisons against it must go through
// Reached/Elapsed, which stay correct across the wrap.
package clock

import "time"

// Clock is a source of free-running millisecond ticks.
type Clock interface {
	Millis() uint32
}

// System is a Clock backed by the monotonic wall clock.
type System struct {
	start time.Time
}

func NewSystem() *System {
	return &System{start: time.Now()}
}

func (c *System) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// Reached reports whether now has passed deadline, treating the counter
// as a circular space. Deadlines more than ~24.8 days out are not
// representable.
func Reached(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}

// Elapsed returns the ticks elapsed between since and now, valid across
// a single counter wrap.
func Elapsed(now, since uint32) uint32 {
	return now - since
}
