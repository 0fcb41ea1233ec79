package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gridley-labs/fanout/internal/analyze"
	"github.com/gridley-labs/fanout/internal/api"
	"github.com/gridley-labs/fanout/internal/config"
	"github.com/gridley-labs/fanout/internal/decompose"
	"github.com/gridley-labs/fanout/internal/exec"
	"github.com/gridley-labs/fanout/internal/git"
	"github.com/gridley-labs/fanout/internal/hosting"
	"github.com/gridley-labs/fanout/internal/integrate"
	"github.com/gridley-labs/fanout/internal/session"
	"github.com/gridley-labs/fanout/internal/state"
	"github.com/gridley-labs/fanout/internal/workspace"
)

var (
	runStrategy       string
	runBaseBranch     string
	runMaxConcurrency int
	runTimeout        time.Duration
	runPlanPath       string
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run a feature request with parallel agents",
	Long: `Run a feature request end to end.

The request is decomposed into independent tasks, each executed by its own
agent in an isolated git worktree. Completed branches are integrated per the
selected merge strategy:

  single_pr   Replay every completed branch onto one integration branch
              and open a single pull request (default).
  federated   Push each completed branch unchanged and open one pull
              request per task plus an aggregate tracking issue.

A running session can be interrupted with Ctrl-C, or from another terminal
by creating the session's cancel file under .fanout/. Interrupted workers
keep their branches and worktrees for inspection.

Examples:
  fanout run "Add rate limiting to the API"
  fanout run --strategy federated "Split the settings page"
  fanout run --plan plan.yaml "Execute the prepared task plan"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Merge strategy: single_pr or federated")
	runCmd.Flags().StringVar(&runBaseBranch, "base", "", "Base branch workers fork from")
	runCmd.Flags().IntVarP(&runMaxConcurrency, "concurrency", "n", 0, "Maximum concurrently running workers")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Hard wall-clock timeout per worker")
	runCmd.Flags().StringVar(&runPlanPath, "plan", "", "Static YAML task plan (skips agent decomposition)")
}

func runSession(cmd *cobra.Command, args []string) error {
	requestText := args[0]
	for _, a := range args[1:] {
		requestText += " " + a
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cfg)

	if err := CheckAgentCLI(cfg.Agent.Command); err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	repoPath, err := findGitRoot(cwd)
	if err != nil {
		return err
	}

	store, err := state.Open(state.ProjectDBPath(repoPath))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate state database: %w", err)
	}

	isolator, err := workspace.NewManager(cfg.Workspaces.BaseDir, repoPath)
	if err != nil {
		return fmt.Errorf("create workspace manager: %w", err)
	}
	reclaimOrphans(store, isolator)

	decomposer, err := buildDecomposer(cfg)
	if err != nil {
		return err
	}

	runner := exec.NewRunner()
	repoGit := git.NewRunner(repoPath)
	host := hosting.NewGitHubCLI(runner, repoGit, repoPath, cfg.Hosting.Remote)
	logf := log.New(os.Stderr, "", log.Ltime).Printf

	manager := session.NewManager(session.Options{
		Config:     cfg,
		Store:      store,
		Analyzer:   analyze.NewAnalyzer(),
		Decomposer: decomposer,
		Runner:     session.NewPoolRunner(cfg, isolator, runner, repoPath, logf),
		Merger:     integrate.New(repoGit, host, cfg.Hosting.Remote, logf),
		Logf:       logf,
	})

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Sessions are also cancellable by touching the control file, so a
	// detached run can be stopped from another terminal.
	cancelPath := session.CancelFilePath(repoPath)
	os.Remove(cancelPath) // a stale control file would cancel immediately
	ctx, stopWatch, err := session.WatchCancel(ctx, cancelPath)
	if err != nil {
		logf("[fanout] cancel watcher unavailable: %v", err)
	} else {
		defer stopWatch()
	}

	s, runErr := manager.Run(ctx, requestText, repoPath)
	if s != nil {
		printSessionSummary(manager, s.ID)
	}
	if runErr != nil {
		color.Red("session failed: %v", runErr)
		os.Exit(1)
	}
	return nil
}

// reclaimOrphans removes worktrees left behind by sessions that are no
// longer active. Best effort; a run should never fail because a previous
// one left litter.
func reclaimOrphans(store state.StateStore, isolator workspace.Isolator) {
	active, err := store.ActiveSessionIDs()
	if err != nil {
		return
	}
	if n, err := isolator.CleanupOrphans(active, nil); err == nil && n > 0 {
		fmt.Fprintf(os.Stderr, "reclaimed %d orphaned workspace(s)\n", n)
	}
}

// applyRunFlags overlays command-line flags onto the loaded config.
func applyRunFlags(cfg *config.Config) {
	if runStrategy != "" {
		cfg.Defaults.MergeStrategy = runStrategy
	}
	if runBaseBranch != "" {
		cfg.Defaults.BaseBranch = runBaseBranch
	}
	if runMaxConcurrency > 0 {
		cfg.Defaults.MaxConcurrency = runMaxConcurrency
	}
	if runTimeout > 0 {
		cfg.Defaults.WorkerTimeout = runTimeout
	}
	if runPlanPath != "" {
		cfg.Decomposer.Strategy = "template"
		cfg.Decomposer.TemplatePath = runPlanPath
	}
}

// buildDecomposer selects the decomposition strategy from configuration.
func buildDecomposer(cfg *config.Config) (decompose.Decomposer, error) {
	limits := decompose.Limits{MinTasks: cfg.Decomposer.MinTasks, MaxTasks: cfg.Decomposer.MaxTasks}

	switch cfg.Decomposer.Strategy {
	case "template":
		if cfg.Decomposer.TemplatePath == "" {
			return nil, fmt.Errorf("decomposer.strategy is template but no template_path is set")
		}
		return decompose.NewStaticTemplate(cfg.Decomposer.TemplatePath, limits), nil
	case "agent", "":
		client, err := api.NewClient(api.ClientConfig{
			Model:         cfg.Anthropic.Model,
			APIKey:        cfg.Anthropic.APIKey,
			UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("create API client: %w", err)
		}
		return decompose.NewAgentBacked(client, limits), nil
	default:
		return nil, fmt.Errorf("unknown decomposer strategy %q", cfg.Decomposer.Strategy)
	}
}
