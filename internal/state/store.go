package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gridley-labs/fanout/pkg/models"
)

// Session CRUD operations

// CreateSession creates a new session record.
func (db *DB) CreateSession(s *models.Session) error {
	_, err := db.conn.Exec(`
		INSERT INTO sessions (id, request_text, repository_ref, base_branch, merge_strategy,
			max_concurrency, worker_timeout_ns, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.RequestText, s.RepositoryRef, s.BaseBranch, string(s.MergeStrategy),
		s.MaxConcurrency, int64(s.WorkerTimeout), string(s.Status), formatTime(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns nil if not found.
func (db *DB) GetSession(id string) (*models.Session, error) {
	row := db.conn.QueryRow(`
		SELECT id, request_text, repository_ref, base_branch, merge_strategy,
			max_concurrency, worker_timeout_ns, status, created_at
		FROM sessions WHERE id = ?
	`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var timeoutNS int64
	var createdAt string
	err := row.Scan(&s.ID, &s.RequestText, &s.RepositoryRef, &s.BaseBranch,
		&s.MergeStrategy, &s.MaxConcurrency, &timeoutNS, &s.Status, &createdAt)
	if err != nil {
		return nil, err
	}
	s.WorkerTimeout = time.Duration(timeoutNS)
	s.CreatedAt, _ = parseTime(createdAt)
	return &s, nil
}

// UpdateSessionStatus persists a session status change.
func (db *DB) UpdateSessionStatus(id string, status models.SessionStatus) error {
	_, err := db.conn.Exec("UPDATE sessions SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// ListSessions lists all sessions, newest first.
func (db *DB) ListSessions() ([]models.Session, error) {
	rows, err := db.conn.Query(`
		SELECT id, request_text, repository_ref, base_branch, merge_strategy,
			max_concurrency, worker_timeout_ns, status, created_at
		FROM sessions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ActiveSessionIDs returns IDs of sessions not in a terminal state.
func (db *DB) ActiveSessionIDs() ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT id FROM sessions
		WHERE status NOT IN ('completed', 'partial_failure', 'failed', 'interrupted')
	`)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Task operations

// CreateTasks persists the decomposed task list in one transaction.
func (db *DB) CreateTasks(sessionID string, tasks []*models.Task) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for _, t := range tasks {
		scope, _ := json.Marshal(t.ScopePaths)
		boundary, _ := json.Marshal(t.BoundaryPaths)
		_, err := tx.Exec(`
			INSERT INTO tasks (session_id, id, name, description, scope_paths, boundary_paths, priority, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sessionID, t.ID, t.Name, t.Description, string(scope), string(boundary), t.Priority, string(t.Status))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("create task %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// ListTasks returns the session's tasks ordered by priority, then ID.
func (db *DB) ListTasks(sessionID string) ([]models.Task, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, description, scope_paths, boundary_paths, priority, status
		FROM tasks WHERE session_id = ? ORDER BY priority ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		var scope, boundary string
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &scope, &boundary, &t.Priority, &t.Status); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		_ = json.Unmarshal([]byte(scope), &t.ScopePaths)
		_ = json.Unmarshal([]byte(boundary), &t.BoundaryPaths)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus persists a task status change.
func (db *DB) UpdateTaskStatus(sessionID, taskID string, status models.TaskStatus) error {
	_, err := db.conn.Exec(`
		UPDATE tasks SET status = ? WHERE session_id = ? AND id = ?
	`, string(status), sessionID, taskID)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// Worker operations

// SaveWorker inserts or replaces the worker record for its task.
func (db *DB) SaveWorker(sessionID string, w *models.Worker) error {
	var completedAt *string
	if w.CompletedAt != nil {
		s := formatTime(*w.CompletedAt)
		completedAt = &s
	}

	_, err := db.conn.Exec(`
		INSERT OR REPLACE INTO workers (session_id, task_id, branch, workspace_path, pid,
			log_path, status, failure_reason, commit_count, modified_file_count, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, w.TaskID, w.Branch, w.WorkspacePath, w.PID, w.LogPath,
		string(w.Status), string(w.FailureReason), w.CommitCount, w.ModifiedFileCount,
		formatTime(w.StartedAt), completedAt)
	if err != nil {
		return fmt.Errorf("save worker: %w", err)
	}
	return nil
}

// ListWorkers returns the session's worker records.
func (db *DB) ListWorkers(sessionID string) ([]models.Worker, error) {
	rows, err := db.conn.Query(`
		SELECT task_id, branch, workspace_path, pid, log_path, status, failure_reason,
			commit_count, modified_file_count, started_at, completed_at
		FROM workers WHERE session_id = ? ORDER BY task_id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []models.Worker
	for rows.Next() {
		var w models.Worker
		var startedAt string
		var completedAt *string
		if err := rows.Scan(&w.TaskID, &w.Branch, &w.WorkspacePath, &w.PID, &w.LogPath,
			&w.Status, &w.FailureReason, &w.CommitCount, &w.ModifiedFileCount,
			&startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		w.StartedAt, _ = parseTime(startedAt)
		if completedAt != nil {
			t, err := parseTime(*completedAt)
			if err == nil {
				w.CompletedAt = &t
			}
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// Merge result operations

// SaveMergeResult inserts or replaces the merge result for a task (or the
// session aggregate when TaskID is empty).
func (db *DB) SaveMergeResult(sessionID string, r *models.MergeResult) error {
	_, err := db.conn.Exec(`
		INSERT OR REPLACE INTO merge_results (session_id, task_id, outcome, branch, artifact_ref, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, r.TaskID, string(r.Outcome), r.Branch, r.ArtifactRef, r.Detail)
	if err != nil {
		return fmt.Errorf("save merge result: %w", err)
	}
	return nil
}

// ListMergeResults returns the session's merge results.
func (db *DB) ListMergeResults(sessionID string) ([]models.MergeResult, error) {
	rows, err := db.conn.Query(`
		SELECT task_id, outcome, branch, artifact_ref, detail
		FROM merge_results WHERE session_id = ? ORDER BY task_id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list merge results: %w", err)
	}
	defer rows.Close()

	var results []models.MergeResult
	for rows.Next() {
		var r models.MergeResult
		if err := rows.Scan(&r.TaskID, &r.Outcome, &r.Branch, &r.ArtifactRef, &r.Detail); err != nil {
			return nil, fmt.Errorf("scan merge result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
