package integrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/gridley-labs/fanout/pkg/models"
)

// federated publishes each completed task's branch unchanged with its own
// pull request, then opens one aggregate tracking issue linking them all.
// Tasks never interact; one task's publication failure leaves the rest
// untouched.
func (i *Integrator) federated(ctx context.Context, req Request, completed []*models.Task) ([]*models.MergeResult, error) {
	var results []*models.MergeResult
	type published struct {
		name string
		ref  string
	}
	var artifacts []published

	for _, task := range completed {
		result := i.publishTask(ctx, req, task)
		results = append(results, result)
		if result.Outcome == models.OutcomeMerged {
			artifacts = append(artifacts, published{name: task.Name, ref: result.ArtifactRef})
		}
	}

	if len(artifacts) == 0 {
		return results, fmt.Errorf("%w: every publication failed", ErrNothingIntegrated)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tracking issue for session %s.\n\n", req.Session.ID)
	fmt.Fprintf(&b, "Request: %s\n\nPublished tasks:\n", req.Session.RequestText)
	for _, a := range artifacts {
		fmt.Fprintf(&b, "- %s: %s\n", a.name, a.ref)
	}

	aggregate := &models.MergeResult{Outcome: models.OutcomeMerged}
	title := fmt.Sprintf("fanout tracking: %s", truncate(req.Session.RequestText, 60))
	ref, err := i.host.CreateTrackingIssue(ctx, title, b.String())
	if err != nil {
		aggregate.Outcome = models.OutcomePublishFailed
		aggregate.Detail = err.Error()
		return append(results, aggregate), fmt.Errorf("%w: tracking issue: %v", ErrPublishFailed, err)
	}
	aggregate.ArtifactRef = ref
	return append(results, aggregate), nil
}

// publishTask pushes one task branch as-is and opens its pull request.
func (i *Integrator) publishTask(ctx context.Context, req Request, task *models.Task) *models.MergeResult {
	taskBranch := branchFor(req, task)

	exists, err := i.git.BranchExists(taskBranch)
	if err != nil || !exists {
		return &models.MergeResult{
			TaskID:  task.ID,
			Outcome: models.OutcomeSkippedNoCommits,
			Branch:  taskBranch,
			Detail:  fmt.Sprintf("%v: branch %s not found", ErrWorkspaceMissing, taskBranch),
		}
	}

	if err := i.host.PushBranch(ctx, taskBranch); err != nil {
		i.logf("[integrate] task %s: push failed: %v", task.ID, err)
		return &models.MergeResult{
			TaskID:  task.ID,
			Outcome: models.OutcomePublishFailed,
			Branch:  taskBranch,
			Detail:  fmt.Sprintf("%v: %v", ErrPushRejected, err),
		}
	}

	title := fmt.Sprintf("fanout: %s", task.Name)
	body := fmt.Sprintf("Automated change for session %s.\n\nTask: %s\n\n%s\n", req.Session.ID, task.Name, task.Description)
	ref, err := i.host.CreatePullRequest(ctx, req.Session.BaseBranch, taskBranch, title, body)
	if err != nil {
		i.logf("[integrate] task %s: pull request failed: %v", task.ID, err)
		return &models.MergeResult{
			TaskID:  task.ID,
			Outcome: models.OutcomePublishFailed,
			Branch:  taskBranch,
			Detail:  fmt.Sprintf("%v: %v", ErrPublishFailed, err),
		}
	}

	return &models.MergeResult{
		TaskID:      task.ID,
		Outcome:     models.OutcomeMerged,
		Branch:      taskBranch,
		ArtifactRef: ref,
	}
}
