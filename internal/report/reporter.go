// Package report sequences the cellular uplink of a single fix: radio
// power-up, clock read, payload formatting, network attach, one upload
// attempt, detach, power-down. Radio power is a scoped resource: once
// PowerUp succeeded, Shutdown runs on every exit path. No step is ever
// retried within a cycle.
package report

import (
	"tracker-service/internal/gps"
)

// Outcome classifies how far the uplink sequence got.
type Outcome int

const (
	Delivered Outcome = iota
	AttachFailed
	UploadFailed
	PoweredOffEarly
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case AttachFailed:
		return "attach-failed"
	case UploadFailed:
		return "upload-failed"
	case PoweredOffEarly:
		return "powered-off-early"
	}
	return "unknown"
}

// Radio is the cellular driver collaborator. internal/cell provides the
// hardware implementation.
type Radio interface {
	PowerUp() error
	Shutdown()
	SetClock(value string) error
	GetClock() (string, error)
	OpenNetwork(apn, user, pass string) error
	CloseNetwork() error
	Upload(server, path string, port int, host, payload, token, contentType string) error
}

// APN holds the static data-network credentials.
type APN struct {
	Name string
	User string
	Pass string
}

// Endpoint is the static upload target.
type Endpoint struct {
	Server      string
	Path        string
	Port        int
	Host        string
	Token       string
	ContentType string
}

// Streams names the two data-stream identifiers the payload carries.
type Streams struct {
	Latitude  string
	Longitude string
}

// Result is what one uplink attempt produced. Clock carries the radio
// RTC snapshot for the track log; it stays empty when the read failed or
// the radio never came up.
type Result struct {
	Outcome Outcome
	Clock   string
}

// Reporter performs one uplink attempt per cycle.
type Reporter struct {
	radio      Radio
	apn        APN
	endpoint   Endpoint
	streams    Streams
	payloadCap int

	initialClock string
	clockWasSet  bool

	logf func(string, ...interface{})
}

func NewReporter(radio Radio, apn APN, endpoint Endpoint, streams Streams, initialClock string, logf func(string, ...interface{})) *Reporter {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Reporter{
		radio:        radio,
		apn:          apn,
		endpoint:     endpoint,
		streams:      streams,
		payloadCap:   PayloadCapacity,
		initialClock: initialClock,
		logf:         logf,
	}
}

// Report uploads one fix. Each step is gated on the previous one; any
// failure is final for the cycle and the radio always ends powered off.
func (r *Reporter) Report(fix gps.FixRecord) Result {
	res := Result{Outcome: PoweredOffEarly}

	if err := r.radio.PowerUp(); err != nil {
		r.logf("report: radio power-up failed: %v", err)
		return res
	}
	defer r.radio.Shutdown()

	// One-time RTC seed from the configured initial value; after that
	// the modem clock free-runs (and tracks the network if NITZ is on).
	if r.initialClock != "" && !r.clockWasSet {
		if err := r.radio.SetClock(r.initialClock); err != nil {
			r.logf("report: initial clock set failed: %v", err)
		} else {
			r.clockWasSet = true
		}
	}

	// Best effort; a failed read only costs the log line its timestamp.
	if ts, err := r.radio.GetClock(); err != nil {
		r.logf("report: clock read failed: %v", err)
	} else {
		res.Clock = ts
	}

	payload, err := FormatPayload(r.streams.Latitude, r.streams.Longitude, fix.Lat, fix.Lon, r.payloadCap)
	if err != nil {
		r.logf("report: %v", err)
		res.Outcome = UploadFailed
		return res
	}

	if err := r.radio.OpenNetwork(r.apn.Name, r.apn.User, r.apn.Pass); err != nil {
		r.logf("report: network attach failed: %v", err)
		res.Outcome = AttachFailed
		return res
	}

	upErr := r.radio.Upload(r.endpoint.Server, r.endpoint.Path, r.endpoint.Port,
		r.endpoint.Host, payload, r.endpoint.Token, r.endpoint.ContentType)

	// Detach regardless of the upload outcome; a detach failure is
	// diagnostic only.
	if err := r.radio.CloseNetwork(); err != nil {
		r.logf("report: network detach failed: %v", err)
	}

	if upErr != nil {
		r.logf("report: upload failed: %v", upErr)
		res.Outcome = UploadFailed
		return res
	}

	res.Outcome = Delivered
	return res
}
