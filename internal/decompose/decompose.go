// Package decompose turns a feature request into independently assignable
// tasks. Two strategies exist: an agent-backed decomposer that asks Claude
// for a task breakdown, and a static template decomposer that reads a plan
// from YAML.
package decompose

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/pkg/models"
)

// ErrDecompositionEmpty is returned when a decomposer produces no tasks.
// It is fatal for the session.
var ErrDecompositionEmpty = errors.New("decomposition produced no tasks")

// Decomposer breaks a feature request into tasks.
type Decomposer interface {
	Decompose(ctx context.Context, requestText string, repo *analyze.RepoMetadata) ([]*models.Task, error)
}

// Limits bounds the accepted decomposition size.
type Limits struct {
	MinTasks int
	MaxTasks int
}

// Validate normalizes and checks a decomposition against the limits.
// Missing IDs are filled in and every task starts Pending. Duplicate IDs
// are an error. Priorities are taken as-is; zero is a valid, most-urgent
// value, so defaulting happens where presence is known (the parse layers).
func Validate(tasks []*models.Task, limits Limits) error {
	if len(tasks) == 0 {
		return ErrDecompositionEmpty
	}
	if limits.MinTasks > 0 && len(tasks) < limits.MinTasks {
		return fmt.Errorf("decomposition produced %d tasks, need at least %d", len(tasks), limits.MinTasks)
	}
	if limits.MaxTasks > 0 && len(tasks) > limits.MaxTasks {
		return fmt.Errorf("decomposition produced %d tasks, limit is %d", len(tasks), limits.MaxTasks)
	}

	seen := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			t.ID = fmt.Sprintf("task-%d-%s", i+1, uuid.New().String()[:8])
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = true

		if t.Name == "" {
			return fmt.Errorf("task %s has no name", t.ID)
		}
		t.Status = models.TaskPending
	}

	return nil
}
