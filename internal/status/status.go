// Package status narrates cycle results to optional observers. Sinks
// are fire and forget: they may drop updates and their failures never
// reach the tracking cycle.
package status

// Update describes one completed cycle.
type Update struct {
	Timestamp string
	Latitude  float64
	Longitude float64
	HasFix    bool
	Outcome   string
}

// Sink receives cycle updates.
type Sink interface {
	Publish(u Update)
}

// Nop is the production default when no narration is wanted.
type Nop struct{}

func (Nop) Publish(Update) {}

// LogSink narrates to the injected logger.
type LogSink struct {
	logf func(string, ...interface{})
}

func NewLogSink(logf func(string, ...interface{})) LogSink {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return LogSink{logf: logf}
}

func (s LogSink) Publish(u Update) {
	if !u.HasFix {
		s.logf("cycle: no fix")
		return
	}
	s.logf("cycle: fix (%.6f, %.6f) at %s, uplink %s", u.Latitude, u.Longitude, u.Timestamp, u.Outcome)
}

// Fanout publishes to every given sink in order.
func Fanout(sinks ...Sink) Sink {
	return fanout(sinks)
}

type fanout []Sink

func (f fanout) Publish(u Update) {
	for _, s := range f {
		s.Publish(u)
	}
}
