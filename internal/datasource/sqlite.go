// Package datasource keeps a local copy of the enabled state in SQLite so
// toggles survive when the companion API is unreachable.
package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/ghtree/pkg/model"
)

// DefaultFileName is the database file inside the state directory.
const DefaultFileName = "ghtree.db"

const schema = `
CREATE TABLE IF NOT EXISTS enabled_state (
	node_id    TEXT PRIMARY KEY,
	enabled    INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore persists enabled records. It implements enabled.Persister.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create state directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// one writer; SQLite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create schema in %s: %w", path, err)
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveEnabled replaces every stored record with records in one transaction.
func (s *SQLiteStore) SaveEnabled(ctx context.Context, records []model.EnabledRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM enabled_state`); err != nil {
		return fmt.Errorf("clearing enabled state: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO enabled_state (node_id, enabled, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	stamp := s.now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.NodeID, r.Enabled, stamp); err != nil {
			return fmt.Errorf("storing %s: %w", r.NodeID, err)
		}
	}
	return tx.Commit()
}

// LoadEnabled returns the stored records ordered by node id.
func (s *SQLiteStore) LoadEnabled(ctx context.Context) ([]model.EnabledRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node_id, enabled FROM enabled_state ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("reading enabled state: %w", err)
	}
	defer rows.Close()

	var records []model.EnabledRecord
	for rows.Next() {
		var r model.EnabledRecord
		if err := rows.Scan(&r.NodeID, &r.Enabled); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enabled state: %w", err)
	}
	return records, nil
}

// UpdatedAt returns when a node's record was last written.
func (s *SQLiteStore) UpdatedAt(ctx context.Context, nodeID string) (time.Time, bool, error) {
	var stamp string
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM enabled_state WHERE node_id = ?`, nodeID).Scan(&stamp)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, stamp)
	return t, err == nil, err
}
