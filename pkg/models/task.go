package models

// TaskStatus represents the current state of a decomposed task.
type TaskStatus string

const (
	// TaskPending indicates the task has not been issued to a worker.
	TaskPending TaskStatus = "pending"
	// TaskAssigned indicates a worker currently owns the task.
	TaskAssigned TaskStatus = "assigned"
	// TaskCompleted indicates the worker finished and produced commits.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed indicates the worker failed (see the worker's failure reason).
	TaskFailed TaskStatus = "failed"
	// TaskTimedOut indicates the worker exceeded the session's worker timeout.
	TaskTimedOut TaskStatus = "timed_out"
	// TaskInterrupted indicates the task was cancelled externally.
	TaskInterrupted TaskStatus = "interrupted"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskAssigned, TaskCompleted, TaskFailed, TaskTimedOut, TaskInterrupted:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskTimedOut, TaskInterrupted:
		return true
	default:
		return false
	}
}

// Task is an independently assignable unit of decomposed work.
// ScopePaths and BoundaryPaths are fixed at decomposition time and never
// mutated afterwards; boundaries are advisory hints for the agent, not
// enforced against the resulting diff.
type Task struct {
	// ID is unique within the session.
	ID string `json:"id"`
	// Name is the short task title, also referenced in commit messages.
	Name string `json:"name"`
	// Description provides the detailed instructions for this task.
	Description string `json:"description"`
	// ScopePaths lists path prefixes the task is expected to touch.
	ScopePaths []string `json:"scope_paths,omitempty"`
	// BoundaryPaths lists path prefixes the task must not touch (advisory).
	BoundaryPaths []string `json:"boundary_paths,omitempty"`
	// Priority orders issuance and integration replay; lower is more urgent.
	Priority int `json:"priority"`
	// Status is the current state of the task. Only the worker supervisor
	// owning the task mutates it.
	Status TaskStatus `json:"status"`
}
