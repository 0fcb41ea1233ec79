package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gridley-labs/fanout/internal/config"
)

var (
	initForce          bool
	initSkipAgentCheck bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a fanout project",
	Long: `Initialize a repository for use with fanout.

This command sets up everything needed to run fanout:
  - Verifies prerequisites (git, agent CLI, gh)
  - Creates the .fanout directory structure
  - Adds .fanout entries to .gitignore
  - Writes a .fanout.yaml template

The directory argument is optional and defaults to the current directory.

Examples:
  fanout init              # Initialize current directory
  fanout init ./myproject  # Initialize specific directory
  fanout init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initSkipAgentCheck, "skip-agent-check", false, "Skip agent CLI availability check")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	fmt.Printf("Initializing fanout in %s...\n\n", absPath)

	fanoutDir := filepath.Join(absPath, ".fanout")
	if _, err := os.Stat(fanoutDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	if _, err := exec.LookPath("git"); err != nil {
		printStatus("✗", "Git not found", color.FgRed)
		return fmt.Errorf("git is required: %w", err)
	}
	printStatus("✓", "Git found", color.FgGreen)

	if !initSkipAgentCheck {
		cfg, err := config.Load()
		agentCmd := "claude"
		if err == nil {
			agentCmd = cfg.Agent.Command
		}
		if err := CheckAgentCLI(agentCmd); err != nil {
			printStatus("✗", fmt.Sprintf("Agent CLI %q not found", agentCmd), color.FgRed)
			return err
		}
		printStatus("✓", "Agent CLI found", color.FgGreen)
	}

	if _, err := exec.LookPath("gh"); err != nil {
		printStatus("⚠", "gh CLI not found (needed to publish pull requests)", color.FgYellow)
	} else {
		printStatus("✓", "gh CLI found", color.FgGreen)
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	if err := os.MkdirAll(filepath.Join(fanoutDir, "logs"), 0755); err != nil {
		return fmt.Errorf("creating .fanout directory: %w", err)
	}
	printStatus("✓", "Created .fanout directory structure", color.FgGreen)

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Updated .gitignore with fanout entries", color.FgGreen)

	if err := createProjectConfig(absPath); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	printStatus("✓", "Created .fanout.yaml template", color.FgGreen)

	fmt.Println("\nReady. Try:")
	fmt.Println("  fanout run \"Describe the feature you want built\"")
	return nil
}

func printStatus(symbol, message string, c color.Attribute) {
	color.New(c).Printf("%s ", symbol)
	fmt.Println(message)
}

// updateGitignore appends fanout's state entries when missing.
func updateGitignore(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if strings.Contains(string(existing), ".fanout/") {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString("\n# fanout state\n.fanout/\n")
	return err
}

// createProjectConfig writes a commented .fanout.yaml template unless one
// already exists.
func createProjectConfig(dir string) error {
	path := filepath.Join(dir, ".fanout.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	template := `# fanout project configuration. Values here override
# ~/.config/fanout/config.yaml; environment variables override both.

defaults:
  base_branch: main
  merge_strategy: single_pr   # single_pr or federated
  max_concurrency: 3
  worker_timeout: 15m

decomposer:
  strategy: agent             # agent or template
  min_tasks: 1
  max_tasks: 8

# agent:
#   command: claude
#   args: ["-p", "--dangerously-skip-permissions"]

# hosting:
#   remote: origin
`
	return os.WriteFile(path, []byte(template), 0644)
}
