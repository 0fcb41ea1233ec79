package decompose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/pkg/models"
)

type fakeCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestParseResponse(t *testing.T) {
	response := `Here is the breakdown:
[
  {"name": "add-api", "description": "Add the HTTP API", "scope_paths": ["internal/api/"], "priority": 1},
  {"name": "add-docs", "description": "Document the API", "scope_paths": ["docs/"], "boundary_paths": ["internal/"], "priority": 2}
]
Let me know if you want changes.`

	tasks, err := ParseResponse(response)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Name != "add-api" || tasks[0].Priority != 1 {
		t.Errorf("unexpected first task: %+v", tasks[0])
	}
	if tasks[1].BoundaryPaths[0] != "internal/" {
		t.Errorf("boundary paths not parsed: %+v", tasks[1])
	}
	for _, task := range tasks {
		if task.Status != models.TaskPending {
			t.Errorf("task %s status = %s, want pending", task.Name, task.Status)
		}
	}
}

func TestParseResponseNoArray(t *testing.T) {
	if _, err := ParseResponse("I could not produce a plan."); err == nil {
		t.Fatal("expected error for response without JSON array")
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	tasks := []*models.Task{
		{Name: "first", Description: "d"},
		{Name: "second", Description: "d", Priority: 5},
	}

	if err := Validate(tasks, Limits{MinTasks: 1, MaxTasks: 8}); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if tasks[0].ID == "" || tasks[1].ID == "" {
		t.Error("expected IDs to be assigned")
	}
	if tasks[0].ID == tasks[1].ID {
		t.Error("expected distinct IDs")
	}
	if tasks[1].Priority != 5 {
		t.Errorf("explicit priority overwritten: got %d", tasks[1].Priority)
	}
}

func TestParseResponsePriorityDefaults(t *testing.T) {
	response := `[
  {"name": "urgent", "description": "d", "priority": 0},
  {"name": "unranked", "description": "d"}
]`

	tasks, err := ParseResponse(response)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if tasks[0].Priority != 0 {
		t.Errorf("explicit priority 0 demoted to %d", tasks[0].Priority)
	}
	if tasks[1].Priority != 2 {
		t.Errorf("absent priority = %d, want declaration order 2", tasks[1].Priority)
	}
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	tasks := []*models.Task{
		{ID: "task-1", Name: "a", Description: "d"},
		{ID: "task-1", Name: "b", Description: "d"},
	}
	if err := Validate(tasks, Limits{MinTasks: 1, MaxTasks: 8}); err == nil {
		t.Fatal("expected duplicate ID error")
	}
}

func TestValidateCountLimits(t *testing.T) {
	if err := Validate(nil, Limits{MinTasks: 1, MaxTasks: 8}); !errors.Is(err, ErrDecompositionEmpty) {
		t.Fatalf("expected ErrDecompositionEmpty, got %v", err)
	}

	tasks := []*models.Task{
		{Name: "a", Description: "d"},
		{Name: "b", Description: "d"},
		{Name: "c", Description: "d"},
	}
	if err := Validate(tasks, Limits{MinTasks: 1, MaxTasks: 2}); err == nil {
		t.Fatal("expected max task count error")
	}
}

func TestAgentBackedDecompose(t *testing.T) {
	completer := &fakeCompleter{
		response: `[{"name": "only-task", "description": "do the work", "scope_paths": ["src/"], "priority": 1}]`,
	}
	d := NewAgentBacked(completer, Limits{MinTasks: 1, MaxTasks: 8})

	tasks, err := d.Decompose(context.Background(), "build the thing", &analyze.RepoMetadata{Type: "go", TestFramework: "go test"})
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].ID == "" {
		t.Error("expected validated task to carry an ID")
	}
	if completer.prompt == "" {
		t.Error("expected the request to reach the completer")
	}
}

func TestAgentBackedDecomposeClientError(t *testing.T) {
	d := NewAgentBacked(&fakeCompleter{err: errors.New("api down")}, Limits{MinTasks: 1, MaxTasks: 8})
	if _, err := d.Decompose(context.Background(), "request", nil); err == nil {
		t.Fatal("expected error when the API fails")
	}
}

func TestStaticTemplateDecompose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	plan := `tasks:
  - id: task-frontend
    name: frontend
    description: Build the UI
    scope_paths:
      - web/
    priority: 2
  - name: backend
    description: Build the API
    scope_paths:
      - internal/
    boundary_paths:
      - web/
    priority: 1
`
	if err := os.WriteFile(path, []byte(plan), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewStaticTemplate(path, Limits{MinTasks: 1, MaxTasks: 8})
	tasks, err := d.Decompose(context.Background(), "ignored", nil)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != "task-frontend" {
		t.Errorf("explicit ID not kept: %q", tasks[0].ID)
	}
	if tasks[1].ID == "" {
		t.Error("expected generated ID for second task")
	}
}

func TestStaticTemplateMissingFile(t *testing.T) {
	d := NewStaticTemplate("/nonexistent/plan.yaml", Limits{MinTasks: 1, MaxTasks: 8})
	if _, err := d.Decompose(context.Background(), "ignored", nil); err == nil {
		t.Fatal("expected error for missing plan file")
	}
}
