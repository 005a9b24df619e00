// Package history persists completed VPN sessions to a local SQLite
// database so past connections survive restarts and are listable from
// the CLI.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no cgo
)

// Entry is one completed session.
type Entry struct {
	ID        int64
	Profile   string
	Protocol  string
	StartedAt time.Time
	EndedAt   time.Time
	RxBytes   uint64
	TxBytes   uint64
}

// Duration returns the session length.
func (e Entry) Duration() time.Duration {
	return e.EndedAt.Sub(e.StartedAt)
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	profile    TEXT    NOT NULL,
	protocol   TEXT    NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at   INTEGER NOT NULL,
	rx_bytes   INTEGER NOT NULL,
	tx_bytes   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_ended_at ON sessions (ended_at DESC);
`

// Store wraps the sessions database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one completed session.
func (s *Store) Record(e Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (profile, protocol, started_at, ended_at, rx_bytes, tx_bytes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Profile, e.Protocol,
		e.StartedAt.Unix(), e.EndedAt.Unix(),
		int64(e.RxBytes), int64(e.TxBytes), // #nosec G115 -- counters fit in int64 for any realistic session
	)
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}
	return nil
}

// Recent returns up to limit sessions, most recently ended first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, profile, protocol, started_at, ended_at, rx_bytes, tx_bytes
		 FROM sessions ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			startedAt, endedAt int64
			rx, tx             int64
		)
		if err := rows.Scan(&e.ID, &e.Profile, &e.Protocol, &startedAt, &endedAt, &rx, &tx); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		e.StartedAt = time.Unix(startedAt, 0)
		e.EndedAt = time.Unix(endedAt, 0)
		e.RxBytes = uint64(rx)
		e.TxBytes = uint64(tx)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session rows: %w", err)
	}
	return entries, nil
}
