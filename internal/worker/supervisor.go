// Package worker supervises a single task from workspace acquisition through
// agent execution to a terminal, classified result.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gridley-labs/fanout/internal/exec"
	"github.com/gridley-labs/fanout/internal/git"
	"github.com/gridley-labs/fanout/internal/prompt"
	"github.com/gridley-labs/fanout/internal/workspace"
	"github.com/gridley-labs/fanout/pkg/models"
)

// Supervisor runs one task in one isolated workspace with one agent
// invocation. It is not reentrant; the scheduler creates a fresh Run call
// per task and never reuses a worker.
type Supervisor struct {
	sessionID  string
	baseBranch string
	timeout    time.Duration
	agentCmd   string
	agentArgs  []string
	logDir     string

	isolator workspace.Isolator
	runner   exec.CommandRunner
	gitFor   func(path string) git.Runner
	composer *prompt.Composer
	logf     func(format string, args ...any)
}

// Options configures a Supervisor.
type Options struct {
	SessionID  string
	BaseBranch string
	Timeout    time.Duration
	AgentCmd   string
	AgentArgs  []string
	// LogDir is where per-worker logs are retained, including on failure.
	LogDir string

	Isolator workspace.Isolator
	Runner   exec.CommandRunner
	Composer *prompt.Composer
	// GitFor returns a git runner bound to the given directory. Defaults to
	// the real runner; tests substitute fakes.
	GitFor func(path string) git.Runner
	// Logf receives progress lines. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// NewSupervisor creates a supervisor from the given options.
func NewSupervisor(opts Options) *Supervisor {
	s := &Supervisor{
		sessionID:  opts.SessionID,
		baseBranch: opts.BaseBranch,
		timeout:    opts.Timeout,
		agentCmd:   opts.AgentCmd,
		agentArgs:  opts.AgentArgs,
		logDir:     opts.LogDir,
		isolator:   opts.Isolator,
		runner:     opts.Runner,
		composer:   opts.Composer,
		gitFor:     opts.GitFor,
		logf:       opts.Logf,
	}
	if s.gitFor == nil {
		s.gitFor = func(path string) git.Runner { return git.NewRunner(path) }
	}
	if s.logf == nil {
		s.logf = log.Printf
	}
	return s
}

// Run drives the task to a terminal worker state:
// acquire workspace, compose prompt, run the agent subprocess under the
// worker timeout, then verify the workspace actually changed.
func (s *Supervisor) Run(ctx context.Context, task *models.Task, siblings []*models.Task) *models.Worker {
	w := &models.Worker{
		TaskID:    task.ID,
		Status:    models.WorkerPending,
		StartedAt: time.Now(),
	}

	s.transition(w, models.WorkerInitializing)
	ws, err := s.isolator.Acquire(s.sessionID, task.ID, s.baseBranch)
	if err != nil {
		if ctx.Err() != nil {
			return s.finish(w, models.WorkerInterrupted, models.FailureInterrupted)
		}
		s.logf("[worker %s] workspace acquisition failed: %v", task.ID, err)
		return s.finish(w, models.WorkerFailed, models.FailureWorkspaceError)
	}
	w.Branch = ws.Branch
	w.WorkspacePath = ws.Path
	s.transition(w, models.WorkerWorkspaceCreated)

	composed := s.composer.Compose(task, siblings)

	logFile, err := s.openLog(task.ID)
	if err != nil {
		s.logf("[worker %s] open log: %v", task.ID, err)
		return s.finish(w, models.WorkerFailed, models.FailureWorkspaceError)
	}
	w.LogPath = logFile.Name()

	s.transition(w, models.WorkerRunning)
	s.logf("[worker %s] agent started in %s (timeout %s)", task.ID, ws.Path, s.timeout)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pid, runErr := s.runner.RunInput(runCtx, ws.Path, composed, logFile, s.agentCmd, s.agentArgs...)
	w.PID = pid
	logFile.Close()

	switch {
	case ctx.Err() != nil:
		// External cancellation. Leave the branch and workspace for
		// inspection, only release the lock.
		if err := s.isolator.Unlock(ws.Path); err != nil {
			s.logf("[worker %s] unlock after interrupt: %v", task.ID, err)
		}
		return s.finish(w, models.WorkerInterrupted, models.FailureInterrupted)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		// The process was killed at the deadline. Exit code is meaningless
		// here, including a clean one.
		s.logf("[worker %s] timed out after %s", task.ID, s.timeout)
		return s.finish(w, models.WorkerTimedOut, models.FailureTimedOut)
	case runErr != nil:
		s.logf("[worker %s] agent failed: %v", task.ID, runErr)
		return s.finish(w, models.WorkerFailed, models.FailureAgentError)
	}

	return s.verify(w, task, ws)
}

// transition applies a lifecycle step, logging rather than panicking on a
// programming error.
func (s *Supervisor) transition(w *models.Worker, next models.WorkerStatus) {
	if err := w.Transition(next); err != nil {
		s.logf("[worker %s] %v", w.TaskID, err)
	}
}

// finish moves the worker to a terminal state and stamps completion.
func (s *Supervisor) finish(w *models.Worker, status models.WorkerStatus, reason models.FailureReason) *models.Worker {
	s.transition(w, status)
	w.FailureReason = reason
	now := time.Now()
	w.CompletedAt = &now
	return w
}

// openLog creates the retained combined-output log for a task's worker.
func (s *Supervisor) openLog(taskID string) (*os.File, error) {
	if err := os.MkdirAll(s.logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return os.Create(filepath.Join(s.logDir, taskID+".log"))
}
