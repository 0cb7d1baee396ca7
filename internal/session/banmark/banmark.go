// Package banmark persists the local "this account was banned" marker.
// The marker outlives the session: signing out does not clear it, so a
// banned user keeps seeing the ban notice until it is explicitly
// acknowledged or the account is un-banned while signed in.
package banmark

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store persists ban markers in SQLite, keyed by user ID.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the marker database at path.
// path can be a file path or ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ban marker database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS ban_markers (
			user_id   TEXT PRIMARY KEY,
			marked_at INTEGER NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ban_markers table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Mark records that userID was observed banned.
func (s *Store) Mark(userID string) error {
	_, err := s.db.Exec(
		"INSERT INTO ban_markers (user_id, marked_at) VALUES (?, ?) ON CONFLICT(user_id) DO UPDATE SET marked_at = excluded.marked_at",
		userID, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark ban: %w", err)
	}
	return nil
}

// Clear removes the marker for userID. Clearing an absent marker is not
// an error.
func (s *Store) Clear(userID string) error {
	if _, err := s.db.Exec("DELETE FROM ban_markers WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear ban marker: %w", err)
	}
	return nil
}

// ClearAll removes every marker. Used when the ban notice is
// acknowledged with no user signed in.
func (s *Store) ClearAll() error {
	if _, err := s.db.Exec("DELETE FROM ban_markers"); err != nil {
		return fmt.Errorf("failed to clear ban markers: %w", err)
	}
	return nil
}

// IsMarked reports whether userID has a ban marker.
func (s *Store) IsMarked(userID string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(1) FROM ban_markers WHERE user_id = ?", userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query ban marker: %w", err)
	}
	return n > 0, nil
}

// Any reports whether any marker exists at all. Used when no user is
// signed in: the notice is shown as long as a marker is present.
func (s *Store) Any() (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM ban_markers").Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query ban markers: %w", err)
	}
	return n > 0, nil
}
