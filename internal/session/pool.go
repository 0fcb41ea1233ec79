package session

import (
	"context"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/internal/config"
	"github.com/gridley-labs/fanout/internal/exec"
	"github.com/gridley-labs/fanout/internal/prompt"
	"github.com/gridley-labs/fanout/internal/scheduler"
	"github.com/gridley-labs/fanout/internal/state"
	"github.com/gridley-labs/fanout/internal/worker"
	"github.com/gridley-labs/fanout/internal/workspace"
	"github.com/gridley-labs/fanout/pkg/models"
)

// PoolRunner is the production TaskRunner: a fresh supervisor per session
// feeding a bounded scheduler pool.
type PoolRunner struct {
	cfg         *config.Config
	isolator    workspace.Isolator
	runner      exec.CommandRunner
	projectRoot string
	logf        func(format string, args ...any)
}

// NewPoolRunner creates the production task runner.
func NewPoolRunner(cfg *config.Config, isolator workspace.Isolator, runner exec.CommandRunner, projectRoot string, logf func(string, ...any)) *PoolRunner {
	return &PoolRunner{
		cfg:         cfg,
		isolator:    isolator,
		runner:      runner,
		projectRoot: projectRoot,
		logf:        logf,
	}
}

var _ TaskRunner = (*PoolRunner)(nil)

// Run issues the session's tasks through a scheduler bounded by the
// session's max concurrency.
func (p *PoolRunner) Run(ctx context.Context, session *models.Session, tasks []*models.Task, repo *analyze.RepoMetadata, onWorker func(*models.Worker)) []*models.Worker {
	sup := worker.NewSupervisor(worker.Options{
		SessionID:  session.ID,
		BaseBranch: session.BaseBranch,
		Timeout:    session.WorkerTimeout,
		AgentCmd:   p.cfg.Agent.Command,
		AgentArgs:  p.cfg.Agent.Args,
		LogDir:     state.ProjectLogDir(p.projectRoot, session.ID),
		Isolator:   p.isolator,
		Runner:     p.runner,
		Composer:   prompt.NewComposer(session.RequestText, repo),
		Logf:       p.logf,
	})

	sched := scheduler.New(scheduler.Options{
		Supervisor:     sup,
		MaxConcurrency: session.MaxConcurrency,
		SpawnStagger:   p.cfg.Scheduler.SpawnStagger,
		PollInterval:   p.cfg.Scheduler.PollInterval,
		OnWorker:       onWorker,
		Logf:           p.logf,
	})
	return sched.Run(ctx, tasks)
}
