// Package sched implements the fixed-interval cycle trigger.
package sched

import (
	"time"

	"tracker-service/internal/clock"
)

// Scheduler gates the tracking cycle: Tick reports true exactly once per
// interval and immediately re-arms. It holds no resources and cannot
// fail, so it is safe to poll at any frequency.
type Scheduler struct {
	interval uint32
	nextDue  uint32
}

// New creates a scheduler whose first trigger is due immediately.
func New(interval time.Duration, now uint32) *Scheduler {
	return &Scheduler{
		interval: uint32(interval.Milliseconds()),
		nextDue:  now,
	}
}

// Tick reports whether a cycle is due at now. On true the deadline is
// re-armed to now + interval: cycles missed while the caller was busy
// are skipped, never queued.
func (s *Scheduler) Tick(now uint32) bool {
	if !clock.Reached(now, s.nextDue) {
		return false
	}
	s.nextDue = now + s.interval
	return true
}

// NextDue returns the current deadline in counter ticks.
func (s *Scheduler) NextDue() uint32 {
	return s.nextDue
}
