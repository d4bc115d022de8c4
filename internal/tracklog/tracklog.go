// Package tracklog appends fixes to the persistent track log, one CSV
// line per cycle with a valid fix. The storage handle is opened and
// closed inside every append so no handle outlives the write.
package tracklog

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"tracker-service/internal/gps"
	"tracker-service/internal/nmea"
)

// Store abstracts the append-only storage the log lives on.
type Store interface {
	OpenAppend(name string) (io.WriteCloser, error)
}

// FileStore is the local-filesystem Store.
type FileStore struct{}

func (FileStore) OpenAppend(name string) (io.WriteCloser, error) {
	return os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Writer appends track records to a named log.
type Writer struct {
	store Store
	name  string
}

func NewWriter(store Store, name string) *Writer {
	return &Writer{store: store, name: name}
}

// Append writes one record: "timestamp,lat,lon\n" with coordinates at 2
// decimal digits. A sentinel "no fix" coordinate is normalized to 0.0
// rather than aborting the write: the timestamp and record structure are
// still worth keeping. On open failure nothing is written.
func (w *Writer) Append(timestamp string, fix gps.FixRecord) error {
	h, err := w.store.OpenAppend(w.name)
	if err != nil {
		return errors.Wrapf(err, "failed to open track log %s", w.name)
	}
	defer h.Close()

	line := fmt.Sprintf("%s,%.2f,%.2f\n", timestamp, normalize(fix.Lat), normalize(fix.Lon))
	if _, err := io.WriteString(h, line); err != nil {
		return errors.Wrap(err, "failed to write track record")
	}
	return nil
}

func normalize(coord float64) float64 {
	if coord == nmea.NoFix {
		return 0.0
	}
	return coord
}
