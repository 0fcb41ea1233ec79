package models

import (
	"fmt"
	"time"
)

// WorkerStatus represents the lifecycle state of a worker.
type WorkerStatus string

const (
	WorkerPending          WorkerStatus = "pending"
	WorkerInitializing     WorkerStatus = "initializing"
	WorkerWorkspaceCreated WorkerStatus = "workspace_created"
	WorkerRunning          WorkerStatus = "running"
	WorkerCompleted        WorkerStatus = "completed"
	WorkerFailed           WorkerStatus = "failed"
	WorkerTimedOut         WorkerStatus = "timed_out"
	WorkerInterrupted      WorkerStatus = "interrupted"
)

// Valid returns true if the status is a known value.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerPending, WorkerInitializing, WorkerWorkspaceCreated, WorkerRunning,
		WorkerCompleted, WorkerFailed, WorkerTimedOut, WorkerInterrupted:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s WorkerStatus) Terminal() bool {
	switch s {
	case WorkerCompleted, WorkerFailed, WorkerTimedOut, WorkerInterrupted:
		return true
	default:
		return false
	}
}

// workerNext maps each non-terminal status to its single forward successor.
// Interrupted is additionally reachable from any non-terminal state.
var workerNext = map[WorkerStatus]WorkerStatus{
	WorkerPending:          WorkerInitializing,
	WorkerInitializing:     WorkerWorkspaceCreated,
	WorkerWorkspaceCreated: WorkerRunning,
}

// CanTransition reports whether moving from s to next is legal.
func (s WorkerStatus) CanTransition(next WorkerStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == WorkerInterrupted || next == WorkerFailed {
		// Cancellation and failure can strike before the agent is running,
		// e.g. when the workspace cannot be created.
		return true
	}
	if next.Terminal() {
		// Completed and TimedOut are only reachable once running.
		return s == WorkerRunning
	}
	return workerNext[s] == next
}

// FailureReason classifies why a worker did not complete.
type FailureReason string

const (
	// FailureNone marks a worker that completed successfully.
	FailureNone FailureReason = ""
	// FailureWorkspaceError means an isolated workspace could not be created.
	FailureWorkspaceError FailureReason = "workspace_error"
	// FailureAgentError means the agent subprocess exited non-zero.
	FailureAgentError FailureReason = "agent_error"
	// FailureTimedOut means the subprocess exceeded the worker timeout.
	FailureTimedOut FailureReason = "timed_out"
	// FailureNoChangesProduced means the agent exited cleanly but left the
	// workspace without a single commit ahead of the base branch.
	FailureNoChangesProduced FailureReason = "no_changes_produced"
	// FailureInterrupted means the worker was cancelled externally.
	FailureInterrupted FailureReason = "interrupted"
)

// Human returns a human-readable description of the failure.
func (r FailureReason) Human() string {
	switch r {
	case FailureNone:
		return "succeeded"
	case FailureWorkspaceError:
		return "workspace could not be created"
	case FailureAgentError:
		return "agent exited with an error"
	case FailureTimedOut:
		return "agent exceeded the worker timeout"
	case FailureNoChangesProduced:
		return "agent exited cleanly but produced no changes"
	case FailureInterrupted:
		return "cancelled before completion"
	default:
		return string(r)
	}
}

// Worker is the runtime binding of one task to one isolated workspace and
// one agent invocation. The worker exclusively owns its workspace until the
// branch is merged or discarded.
type Worker struct {
	// TaskID identifies the task this worker owns (1:1).
	TaskID string `json:"task_id"`
	// Branch is the workspace branch, derived from session and task IDs.
	Branch string `json:"branch"`
	// WorkspacePath is the isolated working copy on disk.
	WorkspacePath string `json:"workspace_path"`
	// PID is the agent subprocess ID while running, 0 otherwise.
	PID int `json:"pid,omitempty"`
	// LogPath is the retained combined-output log for this worker.
	LogPath string `json:"log_path,omitempty"`
	// Status is the current lifecycle state.
	Status WorkerStatus `json:"status"`
	// FailureReason classifies a non-completed terminal state.
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	// CommitCount is the number of commits ahead of the base branch.
	CommitCount int `json:"commit_count"`
	// ModifiedFileCount is the number of files changed relative to base.
	ModifiedFileCount int `json:"modified_file_count"`
	// StartedAt is when the worker was issued.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the worker reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Transition moves the worker to the next status, rejecting transitions the
// state machine does not allow.
func (w *Worker) Transition(next WorkerStatus) error {
	if !w.Status.CanTransition(next) {
		return fmt.Errorf("invalid worker transition %s -> %s for task %s", w.Status, next, w.TaskID)
	}
	w.Status = next
	return nil
}

// TaskStatusFor maps a terminal worker status onto the owning task's status.
func TaskStatusFor(s WorkerStatus) TaskStatus {
	switch s {
	case WorkerCompleted:
		return TaskCompleted
	case WorkerTimedOut:
		return TaskTimedOut
	case WorkerInterrupted:
		return TaskInterrupted
	default:
		return TaskFailed
	}
}
