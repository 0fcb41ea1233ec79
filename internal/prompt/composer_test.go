package prompt

import (
	"strings"
	"testing"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/pkg/models"
)

func TestComposeIncludesTaskAndRequest(t *testing.T) {
	c := NewComposer("Add user avatars", &analyze.RepoMetadata{Type: "go", TestFramework: "go test"})
	task := &models.Task{
		ID:          "t1",
		Name:        "backend",
		Description: "Add avatar upload endpoint",
		ScopePaths:  []string{"internal/api/"},
	}

	out := c.Compose(task, []*models.Task{task})

	for _, want := range []string{
		"Add user avatars",
		"Task ID: t1",
		"Add avatar upload endpoint",
		"internal/api/",
		"Type: go",
		"go test",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestComposeSiblingDigestExcludesSelf(t *testing.T) {
	c := NewComposer("Add X", nil)
	a := &models.Task{ID: "t1", Name: "backend", Description: "api work"}
	b := &models.Task{ID: "t2", Name: "frontend", Description: "ui work"}

	out := c.Compose(a, []*models.Task{a, b})

	if !strings.Contains(out, "frontend: ui work") {
		t.Error("expected sibling digest to mention frontend task")
	}
	if strings.Contains(out, "backend: api work") {
		t.Error("digest should not include the task itself")
	}
}

func TestComposeBoundaryPathsAdvisory(t *testing.T) {
	c := NewComposer("Add X", nil)
	task := &models.Task{
		ID:            "t1",
		Name:          "backend",
		BoundaryPaths: []string{"web/"},
	}

	out := c.Compose(task, nil)
	if !strings.Contains(out, "Do not touch these paths") || !strings.Contains(out, "web/") {
		t.Error("expected boundary paths section")
	}
}

func TestComposeTruncatesLongSiblingDescriptions(t *testing.T) {
	c := NewComposer("Add X", nil)
	long := strings.Repeat("x", 500)
	a := &models.Task{ID: "t1", Name: "a"}
	b := &models.Task{ID: "t2", Name: "b", Description: long}

	out := c.Compose(a, []*models.Task{a, b})
	if strings.Contains(out, long) {
		t.Error("expected long sibling description to be truncated")
	}
}
