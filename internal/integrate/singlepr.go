package integrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/gridley-labs/fanout/internal/workspace"
	"github.com/gridley-labs/fanout/pkg/models"
)

// IntegrationBranchFor returns the deterministic integration branch name for
// a session.
func IntegrationBranchFor(sessionID string) string {
	return workspace.BranchPrefix + sessionID + "/integration"
}

// singlePR replays every completed task's commits, in ascending priority
// order, onto one integration branch and opens one pull request for the lot.
// One task's irreconcilable conflict rolls back that task only.
func (i *Integrator) singlePR(ctx context.Context, req Request, completed []*models.Task) ([]*models.MergeResult, error) {
	branch := IntegrationBranchFor(req.Session.ID)

	if err := i.rebuildIntegrationBranch(branch, req.Session.BaseBranch); err != nil {
		return nil, fmt.Errorf("prepare integration branch %s: %w", branch, err)
	}

	var results []*models.MergeResult
	var mergedNames []string
	for _, task := range completed {
		result := i.replayTask(req, task, branch)
		results = append(results, result)
		if result.Outcome.Merged() {
			mergedNames = append(mergedNames, task.Name)
		}
	}

	if len(mergedNames) == 0 {
		return results, fmt.Errorf("%w: every replay failed", ErrNothingIntegrated)
	}

	aggregate, err := i.publishIntegrationBranch(ctx, req, branch, mergedNames)
	results = append(results, aggregate)
	return results, err
}

// rebuildIntegrationBranch recreates the integration branch from the base
// branch. Rebuilding from scratch keeps re-runs deterministic; the previous
// run's branch state is fully derivable from the task branches.
func (i *Integrator) rebuildIntegrationBranch(branch, base string) error {
	exists, err := i.git.BranchExists(branch)
	if err != nil {
		return err
	}
	if exists {
		// The branch may be checked out from a previous run; move off it
		// before deleting.
		if err := i.git.CheckoutBranch(base); err != nil {
			return err
		}
		if err := i.git.DeleteBranch(branch); err != nil {
			return err
		}
	}
	if err := i.git.CreateBranchFrom(branch, base); err != nil {
		return err
	}
	return i.git.CheckoutBranch(branch)
}

// replayTask cherry-picks one task's commits onto the integration branch,
// applying the automatic conflict policy per commit. An unresolvable commit
// rolls the whole task back to the pre-task tip.
func (i *Integrator) replayTask(req Request, task *models.Task, branch string) *models.MergeResult {
	taskBranch := branchFor(req, task)

	exists, err := i.git.BranchExists(taskBranch)
	if err != nil || !exists {
		i.logf("[integrate] task %s: branch %s gone, skipping", task.ID, taskBranch)
		return &models.MergeResult{
			TaskID:  task.ID,
			Outcome: models.OutcomeSkippedNoCommits,
			Branch:  taskBranch,
			Detail:  fmt.Sprintf("%v: branch %s not found", ErrWorkspaceMissing, taskBranch),
		}
	}

	commits, err := i.git.CommitsBetween(req.Session.BaseBranch, taskBranch)
	if err != nil {
		return &models.MergeResult{
			TaskID:  task.ID,
			Outcome: models.OutcomeSkippedNoCommits,
			Branch:  taskBranch,
			Detail:  fmt.Sprintf("list commits: %v", err),
		}
	}
	if len(commits) == 0 {
		return &models.MergeResult{
			TaskID:  task.ID,
			Outcome: models.OutcomeSkippedNoCommits,
			Branch:  taskBranch,
			Detail:  "no commits ahead of base",
		}
	}

	savedTip, err := i.git.RevParse("HEAD")
	if err != nil {
		return &models.MergeResult{
			TaskID:  task.ID,
			Outcome: models.OutcomeConflictUnresolved,
			Branch:  taskBranch,
			Detail:  fmt.Sprintf("resolve integration tip: %v", err),
		}
	}

	outcome := models.OutcomeMerged
	for _, commit := range commits {
		if err := i.git.CherryPick(commit); err == nil {
			continue
		}
		if err := i.resolveConflicts(commit); err != nil {
			i.logf("[integrate] task %s: commit %s unresolvable (%v), rolling back", task.ID, commit, err)
			if abortErr := i.git.CherryPickAbort(); abortErr != nil {
				i.logf("[integrate] abort cherry-pick: %v", abortErr)
			}
			if resetErr := i.git.ResetHard(savedTip); resetErr != nil {
				i.logf("[integrate] roll back to %s: %v", savedTip, resetErr)
			}
			return &models.MergeResult{
				TaskID:  task.ID,
				Outcome: models.OutcomeConflictUnresolved,
				Branch:  taskBranch,
				Detail:  fmt.Sprintf("%v: commit %s: %v", ErrConflictUnresolved, commit, err),
			}
		}
		outcome = models.OutcomeConflictResolved
	}

	i.logf("[integrate] task %s: %d commit(s) replayed (%s)", task.ID, len(commits), outcome)
	return &models.MergeResult{TaskID: task.ID, Outcome: outcome, Branch: taskBranch}
}

// resolveConflicts applies the automatic policy to an in-progress conflicted
// cherry-pick of commit: per path, prefer the incoming version when the path
// still exists in the commit, otherwise honor the deletion. Then finalize
// the commit.
func (i *Integrator) resolveConflicts(commit string) error {
	paths, err := i.git.ConflictedFiles()
	if err != nil {
		return fmt.Errorf("list conflicts: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("cherry-pick failed without conflict markers")
	}

	for _, path := range paths {
		exists, err := i.git.PathExistsIn(commit, path)
		if err != nil {
			return fmt.Errorf("inspect %s in %s: %w", path, commit, err)
		}
		if exists {
			if err := i.git.CheckoutTheirs(path); err != nil {
				return fmt.Errorf("take incoming %s: %w", path, err)
			}
			if err := i.git.Add(path); err != nil {
				return fmt.Errorf("stage %s: %w", path, err)
			}
		} else if err := i.git.RemovePath(path); err != nil {
			return fmt.Errorf("remove deleted %s: %w", path, err)
		}
	}

	staged, err := i.git.HasStagedChanges()
	if err != nil {
		return fmt.Errorf("check resolution result: %w", err)
	}
	if !staged {
		// Resolution took the incoming content but it already matches the
		// integration branch; continuing would fail on an empty commit.
		i.logf("[integrate] commit %s resolved to no changes, skipping", commit)
		return i.git.CherryPickSkip()
	}

	return i.git.CherryPickContinue()
}

// publishIntegrationBranch pushes the integration branch and opens one pull
// request, unless an identical tree was already published, in which case the
// existing artifact is reported and nothing is pushed.
func (i *Integrator) publishIntegrationBranch(ctx context.Context, req Request, branch string, mergedNames []string) (*models.MergeResult, error) {
	aggregate := &models.MergeResult{Outcome: models.OutcomeMerged, Branch: branch}

	if prior := priorAggregate(req.PriorResults); prior != "" {
		same, err := i.publishedTreeMatches(branch)
		if err != nil {
			i.logf("[integrate] compare published tree: %v", err)
		} else if same {
			// Replay produced new commit IDs but the same content; the
			// session was already published.
			i.logf("[integrate] no new commits to add, reporting existing artifact %s", prior)
			aggregate.ArtifactRef = prior
			aggregate.Detail = "already published"
			return aggregate, nil
		}
	}

	if err := i.push(branch); err != nil {
		aggregate.Outcome = models.OutcomePublishFailed
		aggregate.Detail = err.Error()
		return aggregate, err
	}

	title := fmt.Sprintf("fanout: %s", truncate(req.Session.RequestText, 60))
	body := integrationBody(req.Session, mergedNames)
	ref, err := i.host.CreatePullRequest(ctx, req.Session.BaseBranch, branch, title, body)
	if err != nil {
		aggregate.Outcome = models.OutcomePublishFailed
		aggregate.Detail = err.Error()
		return aggregate, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	aggregate.ArtifactRef = ref
	return aggregate, nil
}

// push publishes the branch, retrying once with force-with-lease only when
// the remote holds different content. Identical content is never force
// pushed; it means the work is already there.
func (i *Integrator) push(branch string) error {
	if err := i.git.Push(i.remote, branch); err == nil {
		return nil
	}

	same, cmpErr := i.publishedTreeMatches(branch)
	if cmpErr == nil && same {
		i.logf("[integrate] push rejected but remote content identical, leaving as-is")
		return nil
	}
	if err := i.git.PushForceWithLease(i.remote, branch); err != nil {
		return fmt.Errorf("%w: %v", ErrPushRejected, err)
	}
	return nil
}

// publishedTreeMatches reports whether the remote copy of branch holds the
// same tree as the local one. Tree hashes are compared rather than commit
// hashes since replay rewrites commit identifiers.
func (i *Integrator) publishedTreeMatches(branch string) (bool, error) {
	has, err := i.git.HasRemote(i.remote)
	if err != nil || !has {
		return false, err
	}
	if err := i.git.Fetch(i.remote, branch); err != nil {
		return false, err
	}
	remoteTree, err := i.git.TreeHash(i.remote + "/" + branch)
	if err != nil {
		return false, err
	}
	localTree, err := i.git.TreeHash(branch)
	if err != nil {
		return false, err
	}
	return remoteTree == localTree, nil
}

func integrationBody(session *models.Session, mergedNames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated integration for session %s.\n\n", session.ID)
	fmt.Fprintf(&b, "Request: %s\n\nMerged tasks:\n", session.RequestText)
	for _, name := range mergedNames {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return b.String()
}
