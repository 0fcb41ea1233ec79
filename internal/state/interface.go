// Package state provides SQLite-based state persistence for fanout.
package state

import (
	"io"

	"github.com/gridley-labs/fanout/pkg/models"
)

// SessionStore handles session-related persistence operations.
type SessionStore interface {
	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	// UpdateSessionStatus persists a status change. The session manager is
	// the sole caller; the store does not re-validate transitions.
	UpdateSessionStatus(id string, status models.SessionStatus) error
	ListSessions() ([]models.Session, error)
	// ActiveSessionIDs returns IDs of sessions not in a terminal state.
	ActiveSessionIDs() ([]string, error)
}

// TaskStore handles task-related persistence operations.
type TaskStore interface {
	CreateTasks(sessionID string, tasks []*models.Task) error
	ListTasks(sessionID string) ([]models.Task, error)
	UpdateTaskStatus(sessionID, taskID string, status models.TaskStatus) error
}

// WorkerStore handles worker-related persistence operations.
type WorkerStore interface {
	// SaveWorker inserts or replaces the worker record for its task.
	SaveWorker(sessionID string, w *models.Worker) error
	ListWorkers(sessionID string) ([]models.Worker, error)
}

// MergeResultStore handles merge-result persistence operations.
type MergeResultStore interface {
	SaveMergeResult(sessionID string, r *models.MergeResult) error
	ListMergeResults(sessionID string) ([]models.MergeResult, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore defines the interface for state persistence. It composes
// focused sub-interfaces so components can depend on only what they use.
type StateStore interface {
	io.Closer
	Migrator
	SessionStore
	TaskStore
	WorkerStore
	MergeResultStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore       = (*DB)(nil)
	_ SessionStore     = (*DB)(nil)
	_ TaskStore        = (*DB)(nil)
	_ WorkerStore      = (*DB)(nil)
	_ MergeResultStore = (*DB)(nil)
)
