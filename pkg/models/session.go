// Package models defines the shared data model for fanout sessions,
// tasks, workers, and merge results.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MergeStrategy selects how completed workers' branches are integrated.
type MergeStrategy string

const (
	// StrategySinglePR replays all completed tasks onto one integration
	// branch and opens a single pull request.
	StrategySinglePR MergeStrategy = "single_pr"
	// StrategyFederated publishes each completed task's branch as its own
	// pull request, linked by one tracking issue.
	StrategyFederated MergeStrategy = "federated"
)

// Valid returns true if the strategy is a known value.
func (s MergeStrategy) Valid() bool {
	return s == StrategySinglePR || s == StrategyFederated
}

// SessionStatus represents the stage a session is in.
type SessionStatus string

const (
	SessionCreated     SessionStatus = "created"
	SessionAnalyzing   SessionStatus = "analyzing"
	SessionDecomposing SessionStatus = "decomposing"
	SessionPreparing   SessionStatus = "preparing"
	SessionSpawning    SessionStatus = "spawning"
	SessionMonitoring  SessionStatus = "monitoring"
	SessionMerging     SessionStatus = "merging"
	SessionCompleted   SessionStatus = "completed"
	// SessionPartialFailure means at least one task succeeded and at least
	// one task failed.
	SessionPartialFailure SessionStatus = "partial_failure"
	SessionFailed         SessionStatus = "failed"
	SessionInterrupted    SessionStatus = "interrupted"
)

// sessionStageOrder maps each non-terminal status to its position in the
// pipeline. Transitions must be monotonic: a session never moves backward.
var sessionStageOrder = map[SessionStatus]int{
	SessionCreated:     0,
	SessionAnalyzing:   1,
	SessionDecomposing: 2,
	SessionPreparing:   3,
	SessionSpawning:    4,
	SessionMonitoring:  5,
	SessionMerging:     6,
}

// Valid returns true if the status is a known value.
func (s SessionStatus) Valid() bool {
	if _, ok := sessionStageOrder[s]; ok {
		return true
	}
	return s.Terminal()
}

// Terminal returns true if the status is a terminal state.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionPartialFailure, SessionFailed, SessionInterrupted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal session
// transition. Terminal states accept no transitions; terminal targets are
// reachable from any non-terminal stage; stage targets must move forward.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next.Terminal() {
		return true
	}
	return sessionStageOrder[next] > sessionStageOrder[s]
}

// Session represents one end-to-end orchestration run for a feature request.
type Session struct {
	// ID is the time-ordered unique identifier for this session.
	ID string `json:"id"`
	// RequestText is the feature or ticket description being implemented.
	RequestText string `json:"request_text"`
	// RepositoryRef is the path or URL of the repository being modified.
	RepositoryRef string `json:"repository_ref"`
	// BaseBranch is the branch workers fork from and integration targets.
	BaseBranch string `json:"base_branch"`
	// MergeStrategy selects SinglePR or Federated integration.
	MergeStrategy MergeStrategy `json:"merge_strategy"`
	// MaxConcurrency bounds the number of concurrently running workers.
	MaxConcurrency int `json:"max_concurrency"`
	// WorkerTimeout is the hard wall-clock limit per worker subprocess.
	WorkerTimeout time.Duration `json:"worker_timeout"`
	// Status is the current stage of the session.
	Status SessionStatus `json:"status"`
	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`
}

// Advance moves the session to the next status, rejecting transitions the
// state machine does not allow. Only the session manager calls this.
func (s *Session) Advance(next SessionStatus) error {
	if !s.Status.CanTransition(next) {
		return fmt.Errorf("invalid session transition %s -> %s", s.Status, next)
	}
	s.Status = next
	return nil
}

// NewSessionID returns a time-ordered session identifier. The timestamp
// prefix keeps lexical order aligned with creation order; the uuid suffix
// guarantees uniqueness within the same second.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102-150405"), uuid.New().String()[:8])
}
