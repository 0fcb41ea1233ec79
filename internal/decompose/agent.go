package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/pkg/models"
)

// decompositionSystem frames the decomposition conversation.
const decompositionSystem = `You are a software project planner. You break feature requests into independent, parallelizable tasks.`

// decompositionPrompt is the prompt template for task decomposition.
const decompositionPrompt = `Break this feature request into independent subtasks. Each task will be
implemented by a separate agent in its own isolated copy of the repository,
with no coordination between agents.

Feature request:
%s

Repository: type=%s, test tooling=%s

Return ONLY a JSON array of tasks with this exact structure (no other text):
[
  {
    "name": "short-task-name",
    "description": "Detailed task description",
    "scope_paths": ["path/prefixes/the/task/should/touch/"],
    "boundary_paths": ["path/prefixes/the/task/must/not/touch/"],
    "priority": 1
  }
]

Guidelines:
- Tasks must be fully independent; no task may rely on another's output
- Declare disjoint scope_paths so tasks do not edit the same files
- priority orders integration (lower merges first); use 1, 2, 3, ...
- Each task should be completable by a single agent in one session`

// Completer is the API surface the agent-backed decomposer needs.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AgentBacked asks a Claude model to decompose the request.
type AgentBacked struct {
	client Completer
	limits Limits
}

// NewAgentBacked creates an agent-backed decomposer.
func NewAgentBacked(client Completer, limits Limits) *AgentBacked {
	return &AgentBacked{client: client, limits: limits}
}

// decomposedTask is the JSON structure returned by the model per task.
// Priority is a pointer so an explicit 0 (valid, most urgent) is
// distinguishable from an absent field.
type decomposedTask struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	ScopePaths    []string `json:"scope_paths"`
	BoundaryPaths []string `json:"boundary_paths"`
	Priority      *int     `json:"priority"`
}

// Decompose takes a feature request and returns a validated task list.
func (d *AgentBacked) Decompose(ctx context.Context, requestText string, repo *analyze.RepoMetadata) ([]*models.Task, error) {
	repoType, testFramework := "unknown", "unknown"
	if repo != nil {
		repoType, testFramework = repo.Type, repo.TestFramework
	}

	prompt := fmt.Sprintf(decompositionPrompt, requestText, repoType, testFramework)

	response, err := d.client.Complete(ctx, decompositionSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("decomposition request: %w", err)
	}

	tasks, err := ParseResponse(response)
	if err != nil {
		return nil, fmt.Errorf("parse decomposition response: %w", err)
	}

	if err := Validate(tasks, d.limits); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ParseResponse parses the model's JSON response into Task objects. The
// response may wrap the array in prose or code fences; only the outermost
// array is read.
func ParseResponse(response string) ([]*models.Task, error) {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return nil, fmt.Errorf("no JSON array found in response (got %d chars): %q", len(response), preview)
	}

	var decoded []decomposedTask
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}

	tasks := make([]*models.Task, 0, len(decoded))
	for i, dt := range decoded {
		tasks = append(tasks, &models.Task{
			Name:          dt.Name,
			Description:   dt.Description,
			ScopePaths:    dt.ScopePaths,
			BoundaryPaths: dt.BoundaryPaths,
			Priority:      priorityOrDefault(dt.Priority, i),
			Status:        models.TaskPending,
		})
	}
	return tasks, nil
}

// priorityOrDefault returns the declared priority, or declaration order
// when none was given.
func priorityOrDefault(p *int, index int) int {
	if p != nil {
		return *p
	}
	return index + 1
}
