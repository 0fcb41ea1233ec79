package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/internal/config"
	"github.com/gridley-labs/fanout/internal/decompose"
	"github.com/gridley-labs/fanout/internal/integrate"
	"github.com/gridley-labs/fanout/pkg/models"
)

type memStore struct {
	sessions map[string]*models.Session
	statuses []models.SessionStatus
	tasks    map[string][]models.Task
	workers  map[string][]models.Worker
	results  map[string][]models.MergeResult
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*models.Session{},
		tasks:    map[string][]models.Task{},
		workers:  map[string][]models.Worker{},
		results:  map[string][]models.MergeResult{},
	}
}

func (s *memStore) Close() error   { return nil }
func (s *memStore) Migrate() error { return nil }

func (s *memStore) CreateSession(session *models.Session) error {
	s.sessions[session.ID] = session
	return nil
}
func (s *memStore) GetSession(id string) (*models.Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return session, nil
}
func (s *memStore) UpdateSessionStatus(id string, status models.SessionStatus) error {
	s.statuses = append(s.statuses, status)
	return nil
}
func (s *memStore) ListSessions() ([]models.Session, error) { return nil, nil }
func (s *memStore) ActiveSessionIDs() ([]string, error)     { return nil, nil }

func (s *memStore) CreateTasks(sessionID string, tasks []*models.Task) error {
	for _, t := range tasks {
		s.tasks[sessionID] = append(s.tasks[sessionID], *t)
	}
	return nil
}
func (s *memStore) ListTasks(sessionID string) ([]models.Task, error) {
	return s.tasks[sessionID], nil
}
func (s *memStore) UpdateTaskStatus(sessionID, taskID string, status models.TaskStatus) error {
	return nil
}

func (s *memStore) SaveWorker(sessionID string, w *models.Worker) error {
	s.workers[sessionID] = append(s.workers[sessionID], *w)
	return nil
}
func (s *memStore) ListWorkers(sessionID string) ([]models.Worker, error) {
	return s.workers[sessionID], nil
}

func (s *memStore) SaveMergeResult(sessionID string, r *models.MergeResult) error {
	s.results[sessionID] = append(s.results[sessionID], *r)
	return nil
}
func (s *memStore) ListMergeResults(sessionID string) ([]models.MergeResult, error) {
	return s.results[sessionID], nil
}

type fakeAnalyzer struct{ err error }

func (f *fakeAnalyzer) Analyze(repoPath string) (*analyze.RepoMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &analyze.RepoMetadata{Type: "go"}, nil
}

type fakeDecomposer struct {
	tasks []*models.Task
	err   error
}

func (f *fakeDecomposer) Decompose(_ context.Context, _ string, _ *analyze.RepoMetadata) ([]*models.Task, error) {
	return f.tasks, f.err
}

// fakeTaskRunner completes each task with the configured worker status and
// optionally cancels the session mid-run.
type fakeTaskRunner struct {
	statuses map[string]models.WorkerStatus
	cancel   context.CancelFunc
}

func (f *fakeTaskRunner) Run(ctx context.Context, session *models.Session, tasks []*models.Task, repo *analyze.RepoMetadata, onWorker func(*models.Worker)) []*models.Worker {
	if f.cancel != nil {
		f.cancel()
	}
	var workers []*models.Worker
	for _, task := range tasks {
		status := f.statuses[task.ID]
		if status == "" {
			status = models.WorkerCompleted
		}
		if f.cancel != nil {
			status = models.WorkerInterrupted
		}
		task.Status = models.TaskStatusFor(status)
		w := &models.Worker{TaskID: task.ID, Status: status, Branch: "fanout/" + session.ID + "/" + task.ID}
		onWorker(w)
		workers = append(workers, w)
	}
	return workers
}

type fakeMerger struct {
	results []*models.MergeResult
	err     error
	called  bool
	req     integrate.Request
}

func (f *fakeMerger) Integrate(_ context.Context, req integrate.Request) ([]*models.MergeResult, error) {
	f.called = true
	f.req = req
	return f.results, f.err
}

func testTasks(ids ...string) []*models.Task {
	tasks := make([]*models.Task, len(ids))
	for i, id := range ids {
		tasks[i] = &models.Task{ID: id, Name: id, Priority: i + 1, Status: models.TaskPending}
	}
	return tasks
}

func newTestManager(store *memStore, d *fakeDecomposer, r TaskRunner, mg Merger) *Manager {
	return NewManager(Options{
		Config:     config.Default(),
		Store:      store,
		Analyzer:   &fakeAnalyzer{},
		Decomposer: d,
		Runner:     r,
		Merger:     mg,
		Logf:       func(string, ...any) {},
	})
}

func TestRunCompletedSession(t *testing.T) {
	store := newMemStore()
	merger := &fakeMerger{results: []*models.MergeResult{
		{TaskID: "t1", Outcome: models.OutcomeMerged},
		{TaskID: "t2", Outcome: models.OutcomeMerged},
		{Outcome: models.OutcomeMerged, ArtifactRef: "https://example.com/pr/1"},
	}}
	m := newTestManager(store, &fakeDecomposer{tasks: testTasks("t1", "t2")}, &fakeTaskRunner{}, merger)

	session, err := m.Run(context.Background(), "add feature X", "/repo")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if session.Status != models.SessionCompleted {
		t.Fatalf("status = %s, want completed", session.Status)
	}
	if !merger.called {
		t.Fatal("expected integration to run")
	}
	if len(store.workers[session.ID]) != 2 {
		t.Errorf("persisted %d workers, want 2", len(store.workers[session.ID]))
	}
	if len(store.results[session.ID]) != 3 {
		t.Errorf("persisted %d merge results, want 3", len(store.results[session.ID]))
	}

	// Stages must have been persisted in pipeline order.
	var prev models.SessionStatus = models.SessionCreated
	for _, st := range store.statuses {
		if !prev.CanTransition(st) {
			t.Errorf("illegal persisted transition %s -> %s", prev, st)
		}
		prev = st
	}
}

func TestRunPartialFailure(t *testing.T) {
	store := newMemStore()
	runner := &fakeTaskRunner{statuses: map[string]models.WorkerStatus{"t2": models.WorkerFailed}}
	merger := &fakeMerger{results: []*models.MergeResult{{TaskID: "t1", Outcome: models.OutcomeMerged}}}
	m := newTestManager(store, &fakeDecomposer{tasks: testTasks("t1", "t2")}, runner, merger)

	session, err := m.Run(context.Background(), "request", "/repo")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if session.Status != models.SessionPartialFailure {
		t.Fatalf("status = %s, want partial_failure", session.Status)
	}
}

func TestRunAllTasksFailed(t *testing.T) {
	store := newMemStore()
	runner := &fakeTaskRunner{statuses: map[string]models.WorkerStatus{
		"t1": models.WorkerFailed,
		"t2": models.WorkerTimedOut,
	}}
	merger := &fakeMerger{}
	m := newTestManager(store, &fakeDecomposer{tasks: testTasks("t1", "t2")}, runner, merger)

	session, err := m.Run(context.Background(), "request", "/repo")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if session.Status != models.SessionFailed {
		t.Fatalf("status = %s, want failed", session.Status)
	}
	if merger.called {
		t.Error("integration must not run with zero completed tasks")
	}
}

func TestRunDecompositionFailureIsFatal(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, &fakeDecomposer{err: decompose.ErrDecompositionEmpty}, &fakeTaskRunner{}, &fakeMerger{})

	session, err := m.Run(context.Background(), "request", "/repo")
	if !errors.Is(err, decompose.ErrDecompositionEmpty) {
		t.Fatalf("err = %v, want ErrDecompositionEmpty", err)
	}
	if session.Status != models.SessionFailed {
		t.Fatalf("status = %s, want failed", session.Status)
	}
}

func TestRunInterrupted(t *testing.T) {
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeTaskRunner{cancel: cancel}
	merger := &fakeMerger{}
	m := newTestManager(store, &fakeDecomposer{tasks: testTasks("t1")}, runner, merger)

	session, err := m.Run(ctx, "request", "/repo")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if session.Status != models.SessionInterrupted {
		t.Fatalf("status = %s, want interrupted", session.Status)
	}
	if merger.called {
		t.Error("integration must not run after interrupt")
	}
}

func TestRunZeroIntegrationsIsFatal(t *testing.T) {
	store := newMemStore()
	merger := &fakeMerger{err: integrate.ErrNothingIntegrated}
	m := newTestManager(store, &fakeDecomposer{tasks: testTasks("t1")}, &fakeTaskRunner{}, merger)

	session, err := m.Run(context.Background(), "request", "/repo")
	if !errors.Is(err, integrate.ErrNothingIntegrated) {
		t.Fatalf("err = %v, want ErrNothingIntegrated", err)
	}
	if session.Status != models.SessionFailed {
		t.Fatalf("status = %s, want failed", session.Status)
	}
}

func TestLoad(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, &fakeDecomposer{tasks: testTasks("t1")}, &fakeTaskRunner{}, &fakeMerger{
		results: []*models.MergeResult{{TaskID: "t1", Outcome: models.OutcomeMerged}},
	})

	session, err := m.Run(context.Background(), "request", "/repo")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	status, err := m.Load(session.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if status.Session.ID != session.ID || len(status.Tasks) != 1 || len(status.Workers) != 1 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestWatchCancel(t *testing.T) {
	dir := t.TempDir()
	path := CancelFilePath(dir)

	ctx, stop, err := WatchCancel(context.Background(), path)
	if err != nil {
		t.Fatalf("WatchCancel failed: %v", err)
	}
	defer stop()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before control file existed")
	case <-time.After(50 * time.Millisecond):
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after control file creation")
	}
}

func TestWatchCancelPreexistingFile(t *testing.T) {
	dir := t.TempDir()
	path := CancelFilePath(dir)
	if err := os.MkdirAll(dir+"/.fanout", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, stop, err := WatchCancel(context.Background(), path)
	if err != nil {
		t.Fatalf("WatchCancel failed: %v", err)
	}
	defer stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected immediate cancellation for pre-existing control file")
	}
}
