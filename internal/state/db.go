// Package state provides SQLite-based state persistence for fanout.
// Session state lives in the project-local database (.fanout/state.db) so
// external tooling can inspect it.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with fanout-specific operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".fanout", "state.db")
}

// ProjectLogDir returns the directory worker logs are retained under.
func ProjectLogDir(projectRoot, sessionID string) string {
	return filepath.Join(projectRoot, ".fanout", "logs", sessionID)
}

// Open opens an SQLite database at the given path, creating parent
// directories if needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// OpenProject opens the project-local database.
func OpenProject(projectRoot string) (*DB, error) {
	return Open(ProjectDBPath(projectRoot))
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Sessions},
		{2, migrationV2Tasks},
		{3, migrationV3Workers},
		{4, migrationV4MergeResults},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements

const migrationV1Sessions = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	request_text TEXT NOT NULL,
	repository_ref TEXT NOT NULL,
	base_branch TEXT NOT NULL,
	merge_strategy TEXT NOT NULL,
	max_concurrency INTEGER NOT NULL,
	worker_timeout_ns INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'created',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
`

const migrationV2Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	session_id TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	scope_paths TEXT,
	boundary_paths TEXT,
	priority INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	PRIMARY KEY (session_id, id),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
`

const migrationV3Workers = `
CREATE TABLE IF NOT EXISTS workers (
	session_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	branch TEXT NOT NULL,
	workspace_path TEXT,
	pid INTEGER NOT NULL DEFAULT 0,
	log_path TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	failure_reason TEXT NOT NULL DEFAULT '',
	commit_count INTEGER NOT NULL DEFAULT 0,
	modified_file_count INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME,
	completed_at DATETIME,
	PRIMARY KEY (session_id, task_id),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
`

const migrationV4MergeResults = `
CREATE TABLE IF NOT EXISTS merge_results (
	session_id TEXT NOT NULL,
	task_id TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	branch TEXT,
	artifact_ref TEXT,
	detail TEXT,
	PRIMARY KEY (session_id, task_id),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
`

// formatTime renders a time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a stored time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
