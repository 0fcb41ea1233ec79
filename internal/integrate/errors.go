package integrate

import "errors"

// Integration failures are classified so the session manager can decide
// between partial and fatal outcomes.
var (
	// ErrWorkspaceMissing means a worker's branch was already discarded.
	// Fatal for that task's integration only.
	ErrWorkspaceMissing = errors.New("workspace missing")
	// ErrConflictUnresolved means a task's replay hit a conflict the
	// automatic policy could not resolve and was rolled back.
	ErrConflictUnresolved = errors.New("conflict unresolved")
	// ErrPushRejected means the remote diverged and the safe retry did not
	// succeed.
	ErrPushRejected = errors.New("push rejected")
	// ErrPublishFailed means the hosting service refused to create the
	// artifact. Reported, not retried automatically.
	ErrPublishFailed = errors.New("publish failed")
	// ErrNothingIntegrated means zero tasks merged; the session-level
	// integration has failed.
	ErrNothingIntegrated = errors.New("no tasks integrated")
)
