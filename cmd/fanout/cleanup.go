package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridley-labs/fanout/internal/config"
	"github.com/gridley-labs/fanout/internal/state"
	"github.com/gridley-labs/fanout/internal/workspace"
)

var (
	cleanupForce   bool
	cleanupVerbose bool
	cleanupDryRun  bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove orphaned workspaces",
	Long: `Clean up isolated workspaces left behind by crashed or interrupted
sessions.

This command:
  - Lists all fanout-managed worktrees
  - Identifies orphans (worktrees whose session is terminal or unknown)
  - Removes orphaned worktrees and prunes stale worktree entries

Branches are kept; only working copies are removed, so committed work stays
integrable.

Examples:
  fanout cleanup              # Interactive cleanup with confirmation
  fanout cleanup --force      # Skip confirmation prompt
  fanout cleanup --dry-run    # Show what would be removed
  fanout cleanup -v           # Show each worktree as it is removed`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
	cleanupCmd.Flags().BoolVarP(&cleanupVerbose, "verbose", "v", false, "Show each worktree as it's removed")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without removing")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	repoPath, err := findGitRoot(cwd)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	isolator, err := workspace.NewManager(cfg.Workspaces.BaseDir, repoPath)
	if err != nil {
		return fmt.Errorf("create workspace manager: %w", err)
	}

	active, err := activeSessionIDs(repoPath)
	if err != nil {
		// Safer to treat every workspace as potentially orphaned than to
		// refuse cleanup entirely.
		if cleanupVerbose {
			fmt.Printf("Warning: could not query active sessions: %v\n", err)
		}
		active = nil
	}

	orphans, err := isolator.ListOrphans(active)
	if err != nil {
		return fmt.Errorf("list orphaned workspaces: %w", err)
	}
	if len(orphans) == 0 {
		fmt.Println("No orphaned workspaces found.")
		return nil
	}

	fmt.Printf("Found %d orphaned workspace(s):\n", len(orphans))
	for _, ws := range orphans {
		fmt.Printf("  - %s (branch: %s)\n", ws.Path, ws.Branch)
	}

	if cleanupDryRun {
		fmt.Println("\nDry run: nothing removed.")
		return nil
	}

	if !cleanupForce && !confirm("Remove these workspaces?") {
		fmt.Println("Aborted.")
		return nil
	}

	var verbose func(string)
	if cleanupVerbose {
		verbose = func(path string) { fmt.Printf("removed %s\n", path) }
	}
	removed, err := isolator.CleanupOrphans(active, verbose)
	if err != nil {
		return fmt.Errorf("cleanup workspaces: %w", err)
	}
	fmt.Printf("Removed %d workspace(s).\n", removed)
	return nil
}

// activeSessionIDs returns the IDs of non-terminal sessions, or nil when no
// state database exists yet.
func activeSessionIDs(repoPath string) ([]string, error) {
	dbPath := state.ProjectDBPath(repoPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil
	}
	store, err := state.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.ActiveSessionIDs()
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
