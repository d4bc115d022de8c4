// Package nmea turns a raw byte stream from a GPS receiver into
// validated position fixes. Sentence framing and resynchronization are
// handled here; checksum verification and field decoding are delegated
// to github.com/adrianmo/go-nmea.
package nmea

import (
	"strings"
	"time"

	gonmea "github.com/adrianmo/go-nmea"
)

// NoFix is the sentinel coordinate reported before any valid sentence
// has been seen. Real coordinates never reach it (|lat| <= 90,
// |lon| <= 180).
const NoFix = 1000.0

// maxSentenceLen bounds the line buffer; NMEA 0183 caps sentences at 82
// characters including "$" and CRLF.
const maxSentenceLen = 82

// Parser accumulates bytes into NMEA sentences and tracks the most
// recent valid position. It resynchronizes on '$' after garbage or
// truncated input.
type Parser struct {
	buf []byte

	lat    float64
	lon    float64
	hasFix bool
	fixAt  time.Time

	now func() time.Time
}

func New() *Parser {
	return &Parser{
		buf: make([]byte, 0, maxSentenceLen),
		lat: NoFix,
		lon: NoFix,
		now: time.Now,
	}
}

// Feed consumes one byte and reports true exactly when it completed a
// checksummed sentence carrying a valid position. Partial or garbled
// sentences are discarded silently.
func (p *Parser) Feed(b byte) bool {
	switch {
	case b == '$':
		// Start of sentence, unconditionally: recovers from truncated
		// lines that never saw a terminator.
		p.buf = append(p.buf[:0], b)
		return false
	case len(p.buf) == 0:
		// Waiting for the next '$'.
		return false
	case b == '\r':
		return false
	case b == '\n':
		line := string(p.buf)
		p.buf = p.buf[:0]
		return p.parseLine(line)
	}

	if len(p.buf) >= maxSentenceLen {
		// Oversized junk; drop it and resync.
		p.buf = p.buf[:0]
		return false
	}
	p.buf = append(p.buf, b)
	return false
}

// Position returns the last decoded coordinates and the age of the fix.
// Before the first valid sentence both coordinates are NoFix.
func (p *Parser) Position() (lat, lon float64, age time.Duration) {
	if !p.hasFix {
		return p.lat, p.lon, 0
	}
	return p.lat, p.lon, p.now().Sub(p.fixAt)
}

func (p *Parser) parseLine(line string) bool {
	s, err := gonmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return false
	}

	switch m := s.(type) {
	case gonmea.RMC:
		if m.Validity != "A" {
			return false
		}
		p.setFix(m.Latitude, m.Longitude)
		return true
	case gonmea.GGA:
		if m.FixQuality == gonmea.Invalid {
			return false
		}
		p.setFix(m.Latitude, m.Longitude)
		return true
	}
	return false
}

func (p *Parser) setFix(lat, lon float64) {
	p.lat = lat
	p.lon = lon
	p.hasFix = true
	p.fixAt = p.now()
}
