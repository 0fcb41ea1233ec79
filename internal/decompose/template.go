package decompose

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/pkg/models"
)

// planFile is the on-disk YAML structure of a static decomposition plan.
type planFile struct {
	Tasks []planTask `yaml:"tasks"`
}

type planTask struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	ScopePaths    []string `yaml:"scope_paths"`
	BoundaryPaths []string `yaml:"boundary_paths"`
	// Priority is a pointer so an explicit 0 survives; absent defaults to
	// declaration order.
	Priority *int `yaml:"priority"`
}

// StaticTemplate reads a pre-written task plan from a YAML file instead of
// asking a model. Useful for repeatable runs and for repositories where the
// split is already known.
type StaticTemplate struct {
	path   string
	limits Limits
}

// NewStaticTemplate creates a decomposer backed by the plan at path.
func NewStaticTemplate(path string, limits Limits) *StaticTemplate {
	return &StaticTemplate{path: path, limits: limits}
}

// Decompose loads and validates the plan. The request text and repo metadata
// are ignored; the plan is authoritative.
func (s *StaticTemplate) Decompose(_ context.Context, _ string, _ *analyze.RepoMetadata) ([]*models.Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	var plan planFile
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan file %s: %w", s.path, err)
	}

	tasks := make([]*models.Task, 0, len(plan.Tasks))
	for i, pt := range plan.Tasks {
		tasks = append(tasks, &models.Task{
			ID:            pt.ID,
			Name:          pt.Name,
			Description:   pt.Description,
			ScopePaths:    pt.ScopePaths,
			BoundaryPaths: pt.BoundaryPaths,
			Priority:      priorityOrDefault(pt.Priority, i),
			Status:        models.TaskPending,
		})
	}

	if err := Validate(tasks, s.limits); err != nil {
		return nil, err
	}
	return tasks, nil
}
