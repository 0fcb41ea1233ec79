package hosting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gridley-labs/fanout/internal/exec"
	"github.com/gridley-labs/fanout/internal/git"
)

// GitHubCLI implements Host using the gh CLI for artifact creation and the
// git remote for branch publication.
type GitHubCLI struct {
	runner   exec.CommandRunner
	remote   git.RemoteOperations
	repoPath string
	// remoteName is the git remote branches are pushed to, usually origin.
	remoteName string
}

var _ Host = (*GitHubCLI)(nil)

// NewGitHubCLI creates a GitHub host backed by gh and the given remote.
func NewGitHubCLI(runner exec.CommandRunner, remote git.RemoteOperations, repoPath, remoteName string) *GitHubCLI {
	return &GitHubCLI{
		runner:     runner,
		remote:     remote,
		repoPath:   repoPath,
		remoteName: remoteName,
	}
}

// Available reports whether the gh CLI is installed.
func (h *GitHubCLI) Available() error {
	if err := h.runner.LookPath("gh"); err != nil {
		return fmt.Errorf("gh CLI not found on PATH (install from https://cli.github.com): %w", err)
	}
	return nil
}

// CreatePullRequest opens a PR from head into base and returns its URL.
func (h *GitHubCLI) CreatePullRequest(ctx context.Context, base, head, title, body string) (string, error) {
	out, err := h.runner.Run(ctx, h.repoPath, "gh", "pr", "create",
		"--base", base,
		"--head", head,
		"--title", title,
		"--body", body,
	)
	if err != nil {
		return "", fmt.Errorf("gh pr create: %w: %s", err, strings.TrimSpace(string(out)))
	}
	// gh prints the PR URL as the last line of output.
	return lastLine(string(out)), nil
}

// CreateTrackingIssue opens an issue and returns its URL.
func (h *GitHubCLI) CreateTrackingIssue(ctx context.Context, title, body string) (string, error) {
	out, err := h.runner.Run(ctx, h.repoPath, "gh", "issue", "create",
		"--title", title,
		"--body", body,
	)
	if err != nil {
		return "", fmt.Errorf("gh issue create: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return lastLine(string(out)), nil
}

// PushBranch pushes the branch to the configured remote.
func (h *GitHubCLI) PushBranch(_ context.Context, branch string) error {
	return h.remote.Push(h.remoteName, branch)
}

// prComments mirrors the gh pr view --json comments payload.
type prComments struct {
	Comments []struct {
		Author struct {
			Login string `json:"login"`
		} `json:"author"`
		Body      string    `json:"body"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"comments"`
}

// ListPRComments returns the comments on the given PR reference (URL or
// number).
func (h *GitHubCLI) ListPRComments(ctx context.Context, prRef string) ([]Comment, error) {
	out, err := h.runner.Run(ctx, h.repoPath, "gh", "pr", "view", prRef, "--json", "comments")
	if err != nil {
		return nil, fmt.Errorf("gh pr view %s: %w: %s", prRef, err, strings.TrimSpace(string(out)))
	}

	var payload prComments
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, fmt.Errorf("parse pr comments: %w", err)
	}

	comments := make([]Comment, 0, len(payload.Comments))
	for _, c := range payload.Comments {
		comments = append(comments, Comment{
			Author:    c.Author.Login,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		})
	}
	return comments, nil
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
