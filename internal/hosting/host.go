// Package hosting talks to the repository hosting service for pull requests,
// tracking issues, and branch publication.
package hosting

import (
	"context"
	"time"
)

// Comment is a single pull request comment.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// Host is the repo-hosting collaborator contract. All operations are
// fallible and safe to retry.
type Host interface {
	// CreatePullRequest opens a pull request and returns its reference
	// (a URL for the GitHub implementation).
	CreatePullRequest(ctx context.Context, base, head, title, body string) (string, error)
	// CreateTrackingIssue opens an aggregate tracking issue and returns its
	// reference.
	CreateTrackingIssue(ctx context.Context, title, body string) (string, error)
	// PushBranch publishes the branch to the configured remote.
	PushBranch(ctx context.Context, branch string) error
	// ListPRComments returns the comments on a pull request.
	ListPRComments(ctx context.Context, prRef string) ([]Comment, error)
}
