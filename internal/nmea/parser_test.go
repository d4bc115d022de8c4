package nmea

import (
	"math"
	"testing"
	"time"
)

const (
	validRMC   = "$GPRMC,173000,A,0130.000,N,10345.000,E,0.0,0.0,121016,,,A*71\r\n"
	voidRMC    = "$GPRMC,173000,V,,,,,,,121016,,,N*53\r\n"
	validGGA   = "$GPGGA,173000,0130.000,N,10345.000,E,1,08,0.9,10.0,M,0.0,M,,*46\r\n"
	noQualGGA  = "$GPGGA,173000,0130.000,N,10345.000,E,0,00,99.9,,M,,M,,*4E\r\n"
	badCksmRMC = "$GPRMC,173000,A,0130.000,N,10345.000,E,0.0,0.0,121016,,,A*00\r\n"
)

// feed pushes a string byte by byte and returns how many bytes reported
// a completed valid position.
func feed(p *Parser, s string) int {
	fixes := 0
	for i := 0; i < len(s); i++ {
		if p.Feed(s[i]) {
			fixes++
		}
	}
	return fixes
}

func TestFeedValidRMC(t *testing.T) {
	p := New()

	if got := feed(p, validRMC); got != 1 {
		t.Fatalf("expected exactly one fix, got %d", got)
	}

	lat, lon, _ := p.Position()
	if math.Abs(lat-1.5) > 1e-6 {
		t.Errorf("lat = %v, want 1.5", lat)
	}
	if math.Abs(lon-103.75) > 1e-6 {
		t.Errorf("lon = %v, want 103.75", lon)
	}
}

func TestFeedValidGGA(t *testing.T) {
	p := New()

	if got := feed(p, validGGA); got != 1 {
		t.Fatalf("expected exactly one fix, got %d", got)
	}

	lat, lon, _ := p.Position()
	if math.Abs(lat-1.5) > 1e-6 || math.Abs(lon-103.75) > 1e-6 {
		t.Errorf("position = (%v, %v), want (1.5, 103.75)", lat, lon)
	}
}

func TestSentinelBeforeFirstFix(t *testing.T) {
	p := New()

	lat, lon, age := p.Position()
	if lat != NoFix || lon != NoFix {
		t.Errorf("position before fix = (%v, %v), want (%v, %v)", lat, lon, NoFix, NoFix)
	}
	if age != 0 {
		t.Errorf("age before fix = %v, want 0", age)
	}
}

func TestVoidAndUnfixedSentencesRejected(t *testing.T) {
	p := New()

	if got := feed(p, voidRMC); got != 0 {
		t.Errorf("void RMC produced %d fixes", got)
	}
	if got := feed(p, noQualGGA); got != 0 {
		t.Errorf("quality-0 GGA produced %d fixes", got)
	}
	if lat, _, _ := p.Position(); lat != NoFix {
		t.Errorf("rejected sentences must not update the position, lat = %v", lat)
	}
}

func TestChecksumMismatchRejected(t *testing.T) {
	p := New()

	if got := feed(p, badCksmRMC); got != 0 {
		t.Errorf("corrupt sentence produced %d fixes", got)
	}
}

func TestResyncAfterGarbage(t *testing.T) {
	p := New()

	// Noise, then a sentence truncated mid-way by a fresh '$', then a
	// clean sentence. Only the clean one validates.
	garbage := "\x00\xff\x7fGPRMC,nonsense\r\n$GPRMC,1730"
	if got := feed(p, garbage); got != 0 {
		t.Fatalf("garbage produced %d fixes", got)
	}
	if got := feed(p, validRMC); got != 1 {
		t.Errorf("expected recovery after garbage, got %d fixes", got)
	}
}

func TestOversizedLineDiscarded(t *testing.T) {
	p := New()

	long := "$GPRMC," + string(make([]byte, 200))
	for i := 0; i < len(long); i++ {
		if p.Feed(long[i]) {
			t.Fatal("oversized line must never validate")
		}
	}
	if got := feed(p, validRMC); got != 1 {
		t.Errorf("expected recovery after oversized line, got %d fixes", got)
	}
}

func TestFixAge(t *testing.T) {
	p := New()

	base := time.Date(2016, 10, 12, 17, 30, 0, 0, time.UTC)
	now := base
	p.now = func() time.Time { return now }

	feed(p, validRMC)
	now = base.Add(700 * time.Millisecond)

	_, _, age := p.Position()
	if age != 700*time.Millisecond {
		t.Errorf("age = %v, want 700ms", age)
	}
}
