// Package gps implements time-boxed fix acquisition from a raw NMEA byte
// channel. The channel is a shared hardware resource and is held only
// for the duration of a single Acquire call.
package gps

import (
	"time"

	"tracker-service/internal/clock"
)

// Parser consumes raw bytes and reports completed valid positions. The
// production implementation is internal/nmea.
type Parser interface {
	Feed(b byte) bool
	Position() (lat, lon float64, age time.Duration)
}

// Acquirer produces at most one validated fix per invocation.
type Acquirer struct {
	ch        Channel
	newParser func() Parser
	clk       clock.Clock
	logf      func(string, ...interface{})
}

func NewAcquirer(ch Channel, newParser func() Parser, clk clock.Clock, logf func(string, ...interface{})) *Acquirer {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Acquirer{ch: ch, newParser: newParser, clk: clk, logf: logf}
}

// Acquire opens the GPS channel and feeds bytes to a fresh parser until
// the first validated sentence or until timeout. The channel is released
// on every exit path. The first valid fix wins; there is no waiting for
// a better one. The deadline is checked between reads and a quiet
// channel blocks for one poll interval, so Acquire can run up to
// pollTimeout past the budget but never longer.
func (a *Acquirer) Acquire(timeout time.Duration) (FixRecord, bool) {
	if err := a.ch.Open(); err != nil {
		a.logf("gps: %v", err)
		return FixRecord{}, false
	}
	defer a.ch.Close()

	p := a.newParser()
	start := a.clk.Millis()
	deadline := start + uint32(timeout.Milliseconds())
	buf := make([]byte, 64)

	for !clock.Reached(a.clk.Millis(), deadline) {
		n, err := a.ch.Read(buf)
		if err != nil {
			a.logf("gps: read failed: %v", err)
			return FixRecord{}, false
		}
		for i := 0; i < n; i++ {
			if p.Feed(buf[i]) {
				lat, lon, age := p.Position()
				a.logf("gps: fix after %dms", clock.Elapsed(a.clk.Millis(), start))
				return FixRecord{Lat: lat, Lon: lon, Age: age, Valid: true}, true
			}
		}
	}

	return FixRecord{}, false
}
