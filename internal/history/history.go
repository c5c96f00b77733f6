// Package history keeps a per-series record of concluded downloads in a
// small SQLite database next to the downloaded files. The link list stays
// the source of truth for pending work; the database is an audit trail
// across runs.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/seriesdl/seriesdl/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	series      TEXT NOT NULL,
	url         TEXT NOT NULL,
	url_hash    TEXT NOT NULL,
	filename    TEXT,
	status      TEXT NOT NULL,
	size        INTEGER NOT NULL DEFAULT 0,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_url_hash ON outcomes(url_hash);
`

// Store records outcomes for one series within one run.
type Store struct {
	db     *sql.DB
	series string
	runID  string
}

// Open opens (creating if needed) the history database at path.
func Open(path, series, runID string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init history schema: %w", err)
	}
	return &Store{db: db, series: series, runID: runID}, nil
}

// Record inserts one concluded entry. History failures are logged by the
// caller and never fail the entry itself.
func (s *Store) Record(url, filename, status string, size int64) error {
	_, err := s.db.Exec(`
		INSERT INTO outcomes (run_id, series, url, url_hash, filename, status, size, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.runID, s.series, url, utils.URLHash(url), filename, status, size, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// CountByStatus returns how many recorded outcomes carry the given status,
// across all runs for this series.
func (s *Store) CountByStatus(status string) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM outcomes WHERE series = ? AND status = ?",
		s.series, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
