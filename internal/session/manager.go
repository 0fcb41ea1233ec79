// Package session drives one orchestration run through its stages: analyze,
// decompose, prepare, spawn, monitor, merge. The manager is the sole mutator
// of session status.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/internal/config"
	"github.com/gridley-labs/fanout/internal/decompose"
	"github.com/gridley-labs/fanout/internal/integrate"
	"github.com/gridley-labs/fanout/internal/state"
	"github.com/gridley-labs/fanout/pkg/models"
)

// TaskRunner runs a session's tasks to terminal worker states. Production
// wiring uses PoolRunner; tests substitute fakes.
type TaskRunner interface {
	Run(ctx context.Context, session *models.Session, tasks []*models.Task, repo *analyze.RepoMetadata, onWorker func(*models.Worker)) []*models.Worker
}

// Merger integrates a finished session's branches. Satisfied by
// integrate.Integrator.
type Merger interface {
	Integrate(ctx context.Context, req integrate.Request) ([]*models.MergeResult, error)
}

// Manager owns the session lifecycle. All collaborators arrive at
// construction; there is no ambient global state.
type Manager struct {
	cfg        *config.Config
	store      state.StateStore
	analyzer   analyze.Analyzer
	decomposer decompose.Decomposer
	runner     TaskRunner
	merger     Merger
	logf       func(format string, args ...any)
}

// Options configures a Manager.
type Options struct {
	Config     *config.Config
	Store      state.StateStore
	Analyzer   analyze.Analyzer
	Decomposer decompose.Decomposer
	Runner     TaskRunner
	Merger     Merger
	Logf       func(format string, args ...any)
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		cfg:        opts.Config,
		store:      opts.Store,
		analyzer:   opts.Analyzer,
		decomposer: opts.Decomposer,
		runner:     opts.Runner,
		merger:     opts.Merger,
		logf:       opts.Logf,
	}
	if m.logf == nil {
		m.logf = log.Printf
	}
	return m
}

// Run executes one end-to-end session for the request and returns the
// terminal session record. Task-level failures never abort the session;
// the terminal status classifies the aggregate outcome.
func (m *Manager) Run(ctx context.Context, requestText, repoPath string) (*models.Session, error) {
	session := &models.Session{
		ID:             models.NewSessionID(time.Now()),
		RequestText:    requestText,
		RepositoryRef:  repoPath,
		BaseBranch:     m.cfg.Defaults.BaseBranch,
		MergeStrategy:  m.cfg.Defaults.Strategy(),
		MaxConcurrency: m.cfg.Defaults.MaxConcurrency,
		WorkerTimeout:  m.cfg.Defaults.WorkerTimeout,
		Status:         models.SessionCreated,
		CreatedAt:      time.Now(),
	}
	if err := m.store.CreateSession(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.logf("[session %s] created for request: %s", session.ID, requestText)

	m.advance(session, models.SessionAnalyzing)
	repo, err := m.analyzer.Analyze(repoPath)
	if err != nil {
		// Analysis only enriches prompts; a failure degrades, not aborts.
		m.logf("[session %s] repository analysis failed: %v", session.ID, err)
		repo = &analyze.RepoMetadata{}
	}

	m.advance(session, models.SessionDecomposing)
	tasks, err := m.decomposer.Decompose(ctx, requestText, repo)
	if err != nil {
		m.terminal(session, models.SessionFailed)
		return session, fmt.Errorf("decompose request: %w", err)
	}
	if err := m.store.CreateTasks(session.ID, tasks); err != nil {
		m.terminal(session, models.SessionFailed)
		return session, fmt.Errorf("persist tasks: %w", err)
	}
	m.logf("[session %s] decomposed into %d task(s)", session.ID, len(tasks))

	m.advance(session, models.SessionPreparing)
	m.advance(session, models.SessionSpawning)

	workers := map[string]*models.Worker{}
	onWorker := func(w *models.Worker) {
		workers[w.TaskID] = w
		if err := m.store.SaveWorker(session.ID, w); err != nil {
			m.logf("[session %s] persist worker %s: %v", session.ID, w.TaskID, err)
		}
		if err := m.store.UpdateTaskStatus(session.ID, w.TaskID, models.TaskStatusFor(w.Status)); err != nil {
			m.logf("[session %s] persist task %s: %v", session.ID, w.TaskID, err)
		}
	}

	m.advance(session, models.SessionMonitoring)
	m.runner.Run(ctx, session, tasks, repo, onWorker)

	if ctx.Err() != nil {
		m.terminal(session, models.SessionInterrupted)
		return session, nil
	}

	completed := countCompleted(tasks)
	if completed == 0 {
		m.terminal(session, models.SessionFailed)
		return session, nil
	}

	m.advance(session, models.SessionMerging)
	prior, err := m.store.ListMergeResults(session.ID)
	if err != nil {
		m.logf("[session %s] load prior merge results: %v", session.ID, err)
	}
	results, mergeErr := m.merger.Integrate(ctx, integrate.Request{
		Session:      session,
		Tasks:        tasks,
		Workers:      workers,
		PriorResults: toPointers(prior),
	})
	for _, r := range results {
		if err := m.store.SaveMergeResult(session.ID, r); err != nil {
			m.logf("[session %s] persist merge result: %v", session.ID, err)
		}
	}
	if mergeErr != nil && errors.Is(mergeErr, integrate.ErrNothingIntegrated) {
		m.terminal(session, models.SessionFailed)
		return session, mergeErr
	}
	if mergeErr != nil {
		m.logf("[session %s] integration finished with error: %v", session.ID, mergeErr)
	}

	if completed == len(tasks) && mergeErr == nil {
		m.terminal(session, models.SessionCompleted)
	} else {
		m.terminal(session, models.SessionPartialFailure)
	}
	return session, nil
}

// Status loads a session with its tasks, workers, and merge results for
// reporting.
type Status struct {
	Session models.Session
	Tasks   []models.Task
	Workers []models.Worker
	Results []models.MergeResult
}

// Load returns the full persisted picture of a session.
func (m *Manager) Load(sessionID string) (*Status, error) {
	session, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	tasks, err := m.store.ListTasks(sessionID)
	if err != nil {
		return nil, err
	}
	workers, err := m.store.ListWorkers(sessionID)
	if err != nil {
		return nil, err
	}
	results, err := m.store.ListMergeResults(sessionID)
	if err != nil {
		return nil, err
	}
	return &Status{Session: *session, Tasks: tasks, Workers: workers, Results: results}, nil
}

// advance moves the session forward one stage and persists it.
func (m *Manager) advance(session *models.Session, next models.SessionStatus) {
	if err := session.Advance(next); err != nil {
		m.logf("[session %s] %v", session.ID, err)
		return
	}
	if err := m.store.UpdateSessionStatus(session.ID, next); err != nil {
		m.logf("[session %s] persist status %s: %v", session.ID, next, err)
	}
}

// terminal records the session's final classification.
func (m *Manager) terminal(session *models.Session, status models.SessionStatus) {
	m.advance(session, status)
	m.logf("[session %s] terminal: %s", session.ID, status)
}

func countCompleted(tasks []*models.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == models.TaskCompleted {
			n++
		}
	}
	return n
}

func toPointers(results []models.MergeResult) []*models.MergeResult {
	out := make([]*models.MergeResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out
}
