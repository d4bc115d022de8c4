package gps

import "time"

// FixRecord is one GPS observation. It lives for a single cycle: created
// fresh by Acquire, read by the uplink reporter and the track log, then
// discarded. A stale record is never carried into the next cycle.
type FixRecord struct {
	Lat   float64
	Lon   float64
	Age   time.Duration
	Valid bool
}
