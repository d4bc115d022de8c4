package report

import (
	"fmt"

	"github.com/pkg/errors"
)

// PayloadCapacity mirrors the transmit buffer of the radio firmware the
// endpoint was sized for. The formatter keeps the rendered payload
// inside it by construction (fixed-width coordinates) and the builder
// enforces it besides.
const PayloadCapacity = 32

// BoundedBuilder accumulates a payload up to a fixed capacity and fails
// loudly instead of truncating when a write would overflow.
type BoundedBuilder struct {
	buf   []byte
	limit int
}

func NewBoundedBuilder(limit int) *BoundedBuilder {
	return &BoundedBuilder{buf: make([]byte, 0, limit), limit: limit}
}

// Appendf formats and appends. On overflow the builder is left
// unchanged and an error is returned.
func (b *BoundedBuilder) Appendf(format string, args ...interface{}) error {
	s := fmt.Sprintf(format, args...)
	if len(b.buf)+len(s) > b.limit {
		return errors.Errorf("payload overflow: %d+%d exceeds %d bytes", len(b.buf), len(s), b.limit)
	}
	b.buf = append(b.buf, s...)
	return nil
}

func (b *BoundedBuilder) Len() int {
	return len(b.buf)
}

func (b *BoundedBuilder) String() string {
	return string(b.buf)
}

// FormatPayload renders the two stream records, one per line, with
// coordinates at exactly 4 decimal digits.
func FormatPayload(latID, lonID string, lat, lon float64, capacity int) (string, error) {
	b := NewBoundedBuilder(capacity)
	if err := b.Appendf("%s,%.4f\n", latID, lat); err != nil {
		return "", err
	}
	if err := b.Appendf("%s,%.4f", lonID, lon); err != nil {
		return "", err
	}
	return b.String(), nil
}
