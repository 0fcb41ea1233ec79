package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

// CheckAgentCLI verifies that the configured modification agent is available
// in PATH. Returns an error with installation instructions if not found.
func CheckAgentCLI(command string) error {
	_, err := exec.LookPath(command)
	if err != nil {
		return fmt.Errorf("%s CLI not found in PATH\n\n"+
			"Fanout runs the external modification agent as a subprocess.\n\n"+
			"For the default agent, install it with:\n"+
			"  npm install -g @anthropic-ai/claude-code\n\n"+
			"Or point agent.command in your config at a different agent.", command)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "fanout",
	Short: "Parallel agent orchestration for feature requests",
	Long: `Fanout decomposes a feature request into independent tasks, runs one
agent per task in an isolated git worktree, and integrates the surviving
branches into a single pull request or one pull request per task.

Core flow:
- Analyzes the repository (language, frameworks, test tooling)
- Decomposes the request into parallelizable tasks
- Spawns agents in isolated worktrees with bounded concurrency
- Verifies each worker produced real commits
- Replays completed branches into one PR, or publishes them federated`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// findGitRoot walks up from startDir until it finds a .git entry.
func findGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not inside a git repository")
		}
		dir = parent
	}
}
