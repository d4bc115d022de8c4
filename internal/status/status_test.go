package status

import (
	"fmt"
	"strings"
	"testing"
)

func TestLogSinkNarration(t *testing.T) {
	var lines []string
	sink := NewLogSink(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})

	sink.Publish(Update{HasFix: false})
	sink.Publish(Update{
		HasFix:    true,
		Latitude:  1.5,
		Longitude: 103.75,
		Timestamp: "12/10/16,17:30:00+32",
		Outcome:   "delivered",
	})

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "cycle: no fix" {
		t.Errorf("no-fix line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "1.500000") || !strings.Contains(lines[1], "delivered") {
		t.Errorf("fix line = %q", lines[1])
	}
}

func TestNopSink(t *testing.T) {
	// Must not panic and must accept anything.
	Nop{}.Publish(Update{HasFix: true, Outcome: "delivered"})
}

type countingSink struct{ n int }

func (s *countingSink) Publish(Update) { s.n++ }

func TestFanout(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	sink := Fanout(a, b)

	sink.Publish(Update{})
	sink.Publish(Update{})

	if a.n != 2 || b.n != 2 {
		t.Errorf("fanout counts = %d, %d, want 2, 2", a.n, b.n)
	}
}
