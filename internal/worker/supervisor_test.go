package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/internal/git"
	"github.com/gridley-labs/fanout/internal/prompt"
	"github.com/gridley-labs/fanout/internal/workspace"
	"github.com/gridley-labs/fanout/pkg/models"
)

type fakeIsolator struct {
	acquireErr error
	unlocked   []string
	workspaces []*workspace.Workspace
}

func (f *fakeIsolator) Acquire(sessionID, taskID, baseBranch string) (*workspace.Workspace, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	ws := &workspace.Workspace{
		Path:      "/tmp/ws/" + taskID,
		Branch:    workspace.BranchFor(sessionID, taskID),
		SessionID: sessionID,
		TaskID:    taskID,
	}
	f.workspaces = append(f.workspaces, ws)
	return ws, nil
}

func (f *fakeIsolator) Release(ws *workspace.Workspace, discard bool) error { return nil }
func (f *fakeIsolator) Unlock(path string) error {
	f.unlocked = append(f.unlocked, path)
	return nil
}
func (f *fakeIsolator) List() ([]*workspace.Workspace, error) { return f.workspaces, nil }
func (f *fakeIsolator) ListOrphans(active []string) ([]*workspace.Workspace, error) {
	return nil, nil
}
func (f *fakeIsolator) CleanupOrphans(active []string, verbose func(string)) (int, error) {
	return 0, nil
}
func (f *fakeIsolator) BaseDir() string { return "/tmp/ws" }

type fakeRunner struct {
	runErr error
	// block makes RunInput wait for context cancellation before returning.
	block bool
	stdin string
}

func (f *fakeRunner) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	return nil, nil
}

func (f *fakeRunner) RunInput(ctx context.Context, workDir, stdin string, out io.Writer, name string, args ...string) (int, error) {
	f.stdin = stdin
	if f.block {
		<-ctx.Done()
		return 1234, ctx.Err()
	}
	io.WriteString(out, "agent output\n")
	return 1234, f.runErr
}

func (f *fakeRunner) LookPath(name string) error { return nil }

type fakeGit struct {
	git.Runner
	dirty     bool
	ahead     int
	files     []string
	added     bool
	committed []string
}

func (f *fakeGit) HasChanges() (bool, error) { return f.dirty, nil }
func (f *fakeGit) AddAll() error {
	f.added = true
	f.dirty = false
	return nil
}
func (f *fakeGit) Commit(message string) error {
	f.committed = append(f.committed, message)
	return nil
}
func (f *fakeGit) AheadCount(base, head string) (int, error) { return f.ahead, nil }
func (f *fakeGit) ChangedFilesRelative(branch, base string) ([]string, error) {
	return f.files, nil
}

func newTestSupervisor(t *testing.T, iso *fakeIsolator, run *fakeRunner, g *fakeGit, timeout time.Duration) *Supervisor {
	t.Helper()
	return NewSupervisor(Options{
		SessionID:  "20260828-120000-abcd1234",
		BaseBranch: "main",
		Timeout:    timeout,
		AgentCmd:   "claude",
		AgentArgs:  []string{"-p"},
		LogDir:     t.TempDir(),
		Isolator:   iso,
		Runner:     run,
		Composer:   prompt.NewComposer("add feature X", &analyze.RepoMetadata{Type: "go"}),
		GitFor:     func(path string) git.Runner { return g },
		Logf:       func(string, ...any) {},
	})
}

func task(id string, priority int) *models.Task {
	return &models.Task{ID: id, Name: id, Description: "work on " + id, Priority: priority, Status: models.TaskPending}
}

func TestRunCompleted(t *testing.T) {
	g := &fakeGit{ahead: 2, files: []string{"a.go", "b.go"}}
	run := &fakeRunner{}
	s := newTestSupervisor(t, &fakeIsolator{}, run, g, time.Minute)

	w := s.Run(context.Background(), task("t1", 1), nil)

	if w.Status != models.WorkerCompleted {
		t.Fatalf("status = %s, want completed (reason %s)", w.Status, w.FailureReason)
	}
	if w.CommitCount != 2 || w.ModifiedFileCount != 2 {
		t.Errorf("counts = %d commits / %d files, want 2/2", w.CommitCount, w.ModifiedFileCount)
	}
	if w.Branch == "" || w.LogPath == "" || w.PID != 1234 {
		t.Errorf("missing runtime fields: %+v", w)
	}
	if w.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}
	if run.stdin == "" {
		t.Error("expected composed prompt on agent stdin")
	}
}

func TestRunAutoCommitsDirtyWorkspace(t *testing.T) {
	g := &fakeGit{dirty: true, ahead: 1}
	s := newTestSupervisor(t, &fakeIsolator{}, &fakeRunner{}, g, time.Minute)

	w := s.Run(context.Background(), task("t1", 1), nil)

	if w.Status != models.WorkerCompleted {
		t.Fatalf("status = %s, want completed", w.Status)
	}
	if !g.added || len(g.committed) != 1 {
		t.Fatalf("expected uncommitted changes to be staged and committed, got added=%v commits=%v", g.added, g.committed)
	}
}

func TestRunNoChangesProduced(t *testing.T) {
	s := newTestSupervisor(t, &fakeIsolator{}, &fakeRunner{}, &fakeGit{ahead: 0}, time.Minute)

	w := s.Run(context.Background(), task("t1", 1), nil)

	if w.Status != models.WorkerFailed {
		t.Fatalf("status = %s, want failed", w.Status)
	}
	if w.FailureReason != models.FailureNoChangesProduced {
		t.Errorf("reason = %s, want no_changes_produced", w.FailureReason)
	}
}

func TestRunWorkspaceError(t *testing.T) {
	iso := &fakeIsolator{acquireErr: errors.New("worktree add failed")}
	s := newTestSupervisor(t, iso, &fakeRunner{}, &fakeGit{}, time.Minute)

	w := s.Run(context.Background(), task("t1", 1), nil)

	if w.Status != models.WorkerFailed || w.FailureReason != models.FailureWorkspaceError {
		t.Fatalf("got %s/%s, want failed/workspace_error", w.Status, w.FailureReason)
	}
}

func TestRunAgentError(t *testing.T) {
	run := &fakeRunner{runErr: errors.New("exit status 1")}
	s := newTestSupervisor(t, &fakeIsolator{}, run, &fakeGit{ahead: 1}, time.Minute)

	w := s.Run(context.Background(), task("t1", 1), nil)

	if w.Status != models.WorkerFailed || w.FailureReason != models.FailureAgentError {
		t.Fatalf("got %s/%s, want failed/agent_error", w.Status, w.FailureReason)
	}
}

func TestRunTimedOut(t *testing.T) {
	run := &fakeRunner{block: true}
	s := newTestSupervisor(t, &fakeIsolator{}, run, &fakeGit{ahead: 1}, 20*time.Millisecond)

	w := s.Run(context.Background(), task("t1", 1), nil)

	if w.Status != models.WorkerTimedOut {
		t.Fatalf("status = %s, want timed_out", w.Status)
	}
	if w.FailureReason != models.FailureTimedOut {
		t.Errorf("reason = %s, want timed_out", w.FailureReason)
	}
}

func TestBoundaryViolations(t *testing.T) {
	tk := task("t1", 1)
	tk.BoundaryPaths = []string{"vendor/", "internal/auth"}

	crossed := boundaryViolations(tk, []string{
		"vendor/lib/lib.go",
		"internal/auth",
		"internal/authz/policy.go",
		"cmd/main.go",
	})

	want := []string{"vendor/lib/lib.go", "internal/auth"}
	if len(crossed) != len(want) {
		t.Fatalf("crossed = %v, want %v", crossed, want)
	}
	for i := range want {
		if crossed[i] != want[i] {
			t.Fatalf("crossed = %v, want %v", crossed, want)
		}
	}
}

func TestRunInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	iso := &fakeIsolator{}
	run := &fakeRunner{block: true}
	s := newTestSupervisor(t, iso, run, &fakeGit{ahead: 1}, time.Minute)

	done := make(chan *models.Worker, 1)
	go func() { done <- s.Run(ctx, task("t1", 1), nil) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	w := <-done

	if w.Status != models.WorkerInterrupted || w.FailureReason != models.FailureInterrupted {
		t.Fatalf("got %s/%s, want interrupted/interrupted", w.Status, w.FailureReason)
	}
	if len(iso.unlocked) != 1 {
		t.Errorf("expected workspace lock released on interrupt, got %v", iso.unlocked)
	}
}
