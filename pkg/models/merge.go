package models

// MergeOutcome classifies the integration result for one task.
type MergeOutcome string

const (
	// OutcomeMerged means the task's commits replayed cleanly.
	OutcomeMerged MergeOutcome = "merged"
	// OutcomeConflictResolved means conflicts occurred and were resolved
	// automatically in favor of the incoming task branch.
	OutcomeConflictResolved MergeOutcome = "conflict_resolved"
	// OutcomeConflictUnresolved means the task's replay was rolled back.
	OutcomeConflictUnresolved MergeOutcome = "conflict_unresolved"
	// OutcomeSkippedNoCommits means the task branch had no commits to merge,
	// or the branch itself was already gone.
	OutcomeSkippedNoCommits MergeOutcome = "skipped_no_commits"
	// OutcomePublishFailed means the task merged or was pushable but the
	// hosting service rejected publication.
	OutcomePublishFailed MergeOutcome = "publish_failed"
)

// Valid returns true if the outcome is a known value.
func (o MergeOutcome) Valid() bool {
	switch o {
	case OutcomeMerged, OutcomeConflictResolved, OutcomeConflictUnresolved,
		OutcomeSkippedNoCommits, OutcomePublishFailed:
		return true
	default:
		return false
	}
}

// Merged returns true if the task's changes landed on the integration branch.
func (o MergeOutcome) Merged() bool {
	return o == OutcomeMerged || o == OutcomeConflictResolved
}

// MergeResult is the integration outcome for one task, or for the whole
// session when TaskID is empty (the federated aggregate record).
type MergeResult struct {
	// TaskID identifies the task, empty for a session-level aggregate.
	TaskID string `json:"task_id,omitempty"`
	// Outcome classifies what happened during integration.
	Outcome MergeOutcome `json:"outcome"`
	// Branch is the published branch name, if any.
	Branch string `json:"branch,omitempty"`
	// ArtifactRef identifies the published pull request or tracking issue.
	ArtifactRef string `json:"artifact_ref,omitempty"`
	// Detail carries a human-readable explanation for failures.
	Detail string `json:"detail,omitempty"`
}
