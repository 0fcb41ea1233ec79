package worker

import (
	"fmt"
	"strings"

	"github.com/gridley-labs/fanout/internal/workspace"
	"github.com/gridley-labs/fanout/pkg/models"
)

// verify inspects the workspace after a clean agent exit. A clean exit
// without any repository mutation is not success: zero commits ahead of the
// base branch classifies as NoChangesProduced.
func (s *Supervisor) verify(w *models.Worker, task *models.Task, ws *workspace.Workspace) *models.Worker {
	g := s.gitFor(ws.Path)

	dirty, err := g.HasChanges()
	if err != nil {
		s.logf("[worker %s] inspect workspace: %v", task.ID, err)
		return s.finish(w, models.WorkerFailed, models.FailureWorkspaceError)
	}
	if dirty {
		// Agents sometimes leave work uncommitted. Commit it for them with
		// a deterministic message so the branch is integrable.
		if err := g.AddAll(); err != nil {
			s.logf("[worker %s] stage changes: %v", task.ID, err)
			return s.finish(w, models.WorkerFailed, models.FailureWorkspaceError)
		}
		if err := g.Commit(fmt.Sprintf("fanout: %s", task.Name)); err != nil {
			s.logf("[worker %s] auto-commit: %v", task.ID, err)
			return s.finish(w, models.WorkerFailed, models.FailureWorkspaceError)
		}
	}

	ahead, err := g.AheadCount(s.baseBranch, ws.Branch)
	if err != nil {
		s.logf("[worker %s] count commits: %v", task.ID, err)
		return s.finish(w, models.WorkerFailed, models.FailureWorkspaceError)
	}
	if ahead == 0 {
		s.logf("[worker %s] agent exited cleanly but produced no changes", task.ID)
		return s.finish(w, models.WorkerFailed, models.FailureNoChangesProduced)
	}
	w.CommitCount = ahead

	files, err := g.ChangedFilesRelative(ws.Branch, s.baseBranch)
	if err != nil {
		s.logf("[worker %s] list changed files: %v", task.ID, err)
	} else {
		w.ModifiedFileCount = len(files)
		for _, crossed := range boundaryViolations(task, files) {
			// Boundary paths are advisory; the integrator's conflict policy
			// is the backstop, so this is a warning, not a failure.
			s.logf("[worker %s] warning: touched boundary path %s", task.ID, crossed)
		}
	}

	s.logf("[worker %s] completed: %d commit(s), %d file(s) changed", task.ID, w.CommitCount, w.ModifiedFileCount)
	return s.finish(w, models.WorkerCompleted, models.FailureNone)
}

// boundaryViolations returns the changed files that fall under one of the
// task's boundary path prefixes.
func boundaryViolations(task *models.Task, files []string) []string {
	var crossed []string
	for _, f := range files {
		for _, b := range task.BoundaryPaths {
			if strings.HasPrefix(f, strings.TrimSuffix(b, "/")+"/") || f == b {
				crossed = append(crossed, f)
				break
			}
		}
	}
	return crossed
}
