// Package storage keeps a queryable history of tracked fixes in SQLite,
// next to the plain-text track log. It is optional; the tracking cycle
// works identically without it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS track (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    recorded_at TEXT NOT NULL,
    latitude    REAL NOT NULL,
    longitude   REAL NOT NULL,
    outcome     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_track_recorded_at ON track (recorded_at);
`

const insertFixSQL = `INSERT INTO track (recorded_at, latitude, longitude, outcome) VALUES (?, ?, ?, ?)`

const recentFixesSQL = `SELECT recorded_at, latitude, longitude, outcome FROM track ORDER BY id DESC LIMIT ?`

// TrackPoint is one stored cycle result.
type TrackPoint struct {
	RecordedAt string
	Latitude   float64
	Longitude  float64
	Outcome    string
}

// TrackStore handles database operations for the fix history.
type TrackStore struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewTrackStore creates a store against the given database path. The
// connection is opened lazily on first use.
func NewTrackStore(dbPath string) *TrackStore {
	return &TrackStore{dbPath: dbPath}
}

func (s *TrackStore) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.dbErr = fmt.Errorf("opening connection: %w", err)
			return
		}
		if _, err := db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

// SaveFix records one cycle's fix and uplink outcome.
func (s *TrackStore) SaveFix(ctx context.Context, recordedAt string, lat, lon float64, outcome string) error {
	db, err := s.getDB()
	if err != nil {
		return fmt.Errorf("getting connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, insertFixSQL, recordedAt, lat, lon, outcome); err != nil {
		return fmt.Errorf("inserting fix: %w", err)
	}
	return nil
}

// RecentFixes returns the newest stored points, newest first.
func (s *TrackStore) RecentFixes(ctx context.Context, limit int) ([]TrackPoint, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, recentFixesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fixes: %w", err)
	}
	defer rows.Close()

	var points []TrackPoint
	for rows.Next() {
		var p TrackPoint
		if err := rows.Scan(&p.RecordedAt, &p.Latitude, &p.Longitude, &p.Outcome); err != nil {
			return nil, fmt.Errorf("scanning fix: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fixes: %w", err)
	}
	return points, nil
}

// Close releases the database connection.
func (s *TrackStore) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}
