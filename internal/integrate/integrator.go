// Package integrate lands completed task branches, either replayed onto one
// integration branch (single PR) or published independently (federated).
package integrate

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/gridley-labs/fanout/internal/git"
	"github.com/gridley-labs/fanout/internal/hosting"
	"github.com/gridley-labs/fanout/internal/workspace"
	"github.com/gridley-labs/fanout/pkg/models"
)

// Request carries everything the integrator needs about a finished session.
type Request struct {
	Session *models.Session
	Tasks   []*models.Task
	// Workers maps task ID to its worker record, used for branch names.
	Workers map[string]*models.Worker
	// PriorResults are merge results persisted by an earlier integration
	// attempt, consulted for idempotent re-publication.
	PriorResults []*models.MergeResult
}

// Integrator runs strictly after all workers are terminal and is the only
// mutator of the shared integration branch. It is single-threaded.
type Integrator struct {
	git    git.Runner
	host   hosting.Host
	remote string
	logf   func(format string, args ...any)
}

// New creates an Integrator over the main repository.
func New(g git.Runner, host hosting.Host, remote string, logf func(string, ...any)) *Integrator {
	if logf == nil {
		logf = log.Printf
	}
	return &Integrator{git: g, host: host, remote: remote, logf: logf}
}

// Integrate dispatches on the session's merge strategy. Per-task failures are
// recorded in the results, never propagated; the returned error is reserved
// for session-level integration failure.
func (i *Integrator) Integrate(ctx context.Context, req Request) ([]*models.MergeResult, error) {
	completed := completedByPriority(req.Tasks)
	if len(completed) == 0 {
		return nil, fmt.Errorf("%w: no completed tasks", ErrNothingIntegrated)
	}

	switch req.Session.MergeStrategy {
	case models.StrategySinglePR:
		return i.singlePR(ctx, req, completed)
	case models.StrategyFederated:
		return i.federated(ctx, req, completed)
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", req.Session.MergeStrategy)
	}
}

// completedByPriority filters Completed tasks and orders them by ascending
// priority. The stable sort keeps equal-priority tasks in decomposition
// order, so replay order is deterministic regardless of completion order.
func completedByPriority(tasks []*models.Task) []*models.Task {
	var completed []*models.Task
	for _, t := range tasks {
		if t.Status == models.TaskCompleted {
			completed = append(completed, t)
		}
	}
	sort.SliceStable(completed, func(a, b int) bool {
		return completed[a].Priority < completed[b].Priority
	})
	return completed
}

// branchFor resolves the branch a task's work lives on.
func branchFor(req Request, task *models.Task) string {
	if w, ok := req.Workers[task.ID]; ok && w.Branch != "" {
		return w.Branch
	}
	return workspace.BranchFor(req.Session.ID, task.ID)
}

// priorAggregate returns the artifact reference from an earlier integration
// of this session, if one was published.
func priorAggregate(prior []*models.MergeResult) string {
	for _, r := range prior {
		if r.TaskID == "" && r.ArtifactRef != "" {
			return r.ArtifactRef
		}
	}
	return ""
}

// truncate shortens s to at most n runes, never splitting a multibyte
// character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
