// Package prompt builds the instruction payload handed to a modification
// agent for one task.
package prompt

import (
	"fmt"
	"strings"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/pkg/models"
)

// scopeGuidance is injected at the top of every prompt to prevent scope
// creep across sibling tasks.
const scopeGuidance = `## Scope Guidance

Stay focused on this task. Sibling tasks are being worked on in parallel
by other agents; their areas are listed below for awareness only.

Do NOT:
- Implement work that belongs to a sibling task
- Expand scope with unrelated refactoring
- Fix unrelated bugs you encounter

DO:
- Complete the assigned task
- Commit your work as you go
- Stay within the declared scope paths
`

// Composer builds task-scoped instruction text.
type Composer struct {
	// RequestText is the overall feature request the session implements.
	RequestText string
	// Repo is the repository metadata produced by analysis.
	Repo *analyze.RepoMetadata
}

// NewComposer creates a Composer for a session.
func NewComposer(requestText string, repo *analyze.RepoMetadata) *Composer {
	return &Composer{RequestText: requestText, Repo: repo}
}

// Compose builds the instruction payload for one task. siblings is the full
// task list of the session; the task itself is skipped in the digest.
func (c *Composer) Compose(task *models.Task, siblings []*models.Task) string {
	var sb strings.Builder

	sb.WriteString(scopeGuidance)
	sb.WriteString("\n")

	sb.WriteString("## Overall Request\n\n")
	sb.WriteString(c.RequestText)
	sb.WriteString("\n\n")

	sb.WriteString("## Your Task\n\n")
	fmt.Fprintf(&sb, "Task ID: %s\n", task.ID)
	fmt.Fprintf(&sb, "Name: %s\n", task.Name)
	if task.Description != "" {
		sb.WriteString("\nDescription:\n")
		sb.WriteString(task.Description)
		sb.WriteString("\n")
	}

	if len(task.ScopePaths) > 0 {
		sb.WriteString("\nWork within these paths:\n")
		for _, p := range task.ScopePaths {
			fmt.Fprintf(&sb, "- `%s`\n", p)
		}
	}
	if len(task.BoundaryPaths) > 0 {
		sb.WriteString("\nDo not touch these paths (owned by sibling tasks):\n")
		for _, p := range task.BoundaryPaths {
			fmt.Fprintf(&sb, "- `%s`\n", p)
		}
	}

	if digest := siblingDigest(task, siblings); digest != "" {
		sb.WriteString("\n## Sibling Tasks (awareness only, no coordination)\n\n")
		sb.WriteString(digest)
	}

	if c.Repo != nil {
		sb.WriteString("\n## Repository\n\n")
		fmt.Fprintf(&sb, "Type: %s\n", c.Repo.Type)
		if len(c.Repo.Frameworks) > 0 {
			fmt.Fprintf(&sb, "Frameworks: %s\n", strings.Join(c.Repo.Frameworks, ", "))
		}
		if c.Repo.TestFramework != "" {
			fmt.Fprintf(&sb, "Test tooling: %s\n", c.Repo.TestFramework)
		}
	}

	sb.WriteString("\nComplete this task and commit your changes. When finished, provide a summary of what was done.\n")

	return sb.String()
}

// siblingDigest lists sibling task names and descriptions, one line each.
func siblingDigest(task *models.Task, siblings []*models.Task) string {
	var sb strings.Builder
	for _, sib := range siblings {
		if sib.ID == task.ID {
			continue
		}
		desc := sib.Description
		if len(desc) > 140 {
			desc = desc[:140] + "..."
		}
		fmt.Fprintf(&sb, "- %s: %s\n", sib.Name, desc)
	}
	return sb.String()
}
