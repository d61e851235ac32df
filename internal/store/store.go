// Package store records provisioning runs.
//
// Every run of provision or deploy leaves one row describing how far it
// got. The fleet commands read it back: `manage history` lists recent
// runs and `manage ssh` uses the remote login recorded for a server.
//
// Storage is backed by a SQLite database at ~/.config/hzdeploy/hzdeploy.db
// (or the platform-equivalent path returned by os.UserConfigDir).
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/database"
)

// Outcome values recorded for a run.
const (
	OutcomeRunning   = "running"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord is one provisioning run.
type RunRecord struct {
	// ID is the auto-increment primary key (assigned on insert).
	ID int64

	ServerName string
	// ServerID is empty until the create request has been accepted.
	ServerID string
	// IP is the public IPv4 once the server is ready.
	IP         string
	RemoteUser string

	// Stage is the last state the run reached.
	Stage string

	// Outcome is OutcomeRunning, OutcomeSucceeded or OutcomeFailed.
	Outcome string

	// Error contains the failure message when Outcome is OutcomeFailed.
	Error string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RunStore defines the persistence interface for run records.
type RunStore interface {
	// Save inserts or updates a run record. On insert (ID == 0), an ID is
	// assigned to the record.
	Save(record *RunRecord) error

	// ListRecent returns the most recent n records, newest first.
	ListRecent(n int) ([]RunRecord, error)

	// LatestForServer returns the newest record for the named server, or
	// nil if there is none.
	LatestForServer(name string) (*RunRecord, error)

	// DeleteOlderThan removes finished records older than d and returns
	// the number removed.
	DeleteOlderThan(d time.Duration) (int64, error)

	// Close releases database resources.
	Close() error
}

// SQLiteStore implements RunStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens the run store at the default path.
func Open() (*SQLiteStore, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenAt(path)
}

// migrations is the run store schema, applied in order by database.Open.
var migrations = []database.Migration{
	{Version: 1, SQL: `
		CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			server_name TEXT    NOT NULL,
			server_id   TEXT    NOT NULL DEFAULT '',
			ip          TEXT    NOT NULL DEFAULT '',
			remote_user TEXT    NOT NULL DEFAULT '',
			stage       TEXT    NOT NULL DEFAULT '',
			outcome     TEXT    NOT NULL DEFAULT 'running',
			error       TEXT    NOT NULL DEFAULT '',
			created_at  TEXT    NOT NULL,
			updated_at  TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_server_name ON runs(server_name);
	`},
}

// OpenAt creates or opens a run store at the given path.
// The parent directory is created if it does not exist.
func OpenAt(path string) (*SQLiteStore, error) {
	db, err := database.Open(path, migrations...)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts a new record (ID == 0) or updates an existing one.
func (s *SQLiteStore) Save(r *RunRecord) error {
	r.UpdatedAt = time.Now().UTC()
	if r.Outcome == "" {
		r.Outcome = OutcomeRunning
	}

	if r.ID == 0 {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = r.UpdatedAt
		}
		r.CreatedAt = r.CreatedAt.UTC()
		result, err := s.db.Exec(`
			INSERT INTO runs (server_name, server_id, ip, remote_user, stage, outcome, error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ServerName, r.ServerID, r.IP, r.RemoteUser, r.Stage, r.Outcome, r.Error,
			r.CreatedAt.Format(timeFormat), r.UpdatedAt.Format(timeFormat),
		)
		if err != nil {
			return fmt.Errorf("store: insert failed: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: failed to get last insert ID: %w", err)
		}
		r.ID = id
		return nil
	}

	result, err := s.db.Exec(`
		UPDATE runs SET server_name=?, server_id=?, ip=?, remote_user=?,
		       stage=?, outcome=?, error=?, updated_at=?
		WHERE id=?`,
		r.ServerName, r.ServerID, r.IP, r.RemoteUser, r.Stage, r.Outcome, r.Error,
		r.UpdatedAt.Format(timeFormat), r.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("store: run with ID %d not found", r.ID)
	}
	return nil
}

const selectColumns = `
	SELECT id, server_name, server_id, ip, remote_user, stage, outcome, error, created_at, updated_at
	FROM runs`

// ListRecent returns the most recent n records regardless of outcome.
func (s *SQLiteStore) ListRecent(n int) ([]RunRecord, error) {
	rows, err := s.db.Query(selectColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: query failed: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan failed: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// LatestForServer returns the newest record for the named server.
func (s *SQLiteStore) LatestForServer(name string) (*RunRecord, error) {
	row := s.db.QueryRow(selectColumns+` WHERE server_name = ? ORDER BY created_at DESC, id DESC LIMIT 1`, name)

	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: query failed: %w", err)
	}
	return r, nil
}

// DeleteOlderThan removes finished records older than d.
func (s *SQLiteStore) DeleteOlderThan(d time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-d).Format(timeFormat)
	result, err := s.db.Exec(`
		DELETE FROM runs WHERE outcome != 'running' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*RunRecord, error) {
	var r RunRecord
	var createdStr, updatedStr string
	err := row.Scan(
		&r.ID, &r.ServerName, &r.ServerID, &r.IP, &r.RemoteUser,
		&r.Stage, &r.Outcome, &r.Error, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(timeFormat, createdStr)
	r.UpdatedAt, _ = time.Parse(timeFormat, updatedStr)
	return &r, nil
}
