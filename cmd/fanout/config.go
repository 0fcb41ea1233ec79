package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridley-labs/fanout/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Display the configuration fanout will use, after merging defaults,
the user config, the project config, and environment variables.

Configuration is read from ~/.config/fanout/config.yaml with per-project
overrides in .fanout.yaml. ANTHROPIC_API_KEY and FANOUT_* environment
variables take precedence over both.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		apiKey := "(not set)"
		if cfg.Anthropic.APIKey != "" {
			apiKey = "****"
		}
		model := cfg.Anthropic.Model
		if model == "" {
			model = "(default)"
		}

		fmt.Println("anthropic:")
		fmt.Printf("  api_key:          %s\n", apiKey)
		fmt.Printf("  model:            %s\n", model)
		fmt.Printf("  use_aws_bedrock:  %v\n", cfg.Anthropic.UseAWSBedrock)
		fmt.Println("defaults:")
		fmt.Printf("  base_branch:      %s\n", cfg.Defaults.BaseBranch)
		fmt.Printf("  merge_strategy:   %s\n", cfg.Defaults.MergeStrategy)
		fmt.Printf("  max_concurrency:  %d\n", cfg.Defaults.MaxConcurrency)
		fmt.Printf("  worker_timeout:   %s\n", cfg.Defaults.WorkerTimeout)
		fmt.Println("agent:")
		fmt.Printf("  command:          %s\n", cfg.Agent.Command)
		fmt.Printf("  args:             %v\n", cfg.Agent.Args)
		fmt.Println("decomposer:")
		fmt.Printf("  strategy:         %s\n", cfg.Decomposer.Strategy)
		fmt.Printf("  min_tasks:        %d\n", cfg.Decomposer.MinTasks)
		fmt.Printf("  max_tasks:        %d\n", cfg.Decomposer.MaxTasks)
		fmt.Println("scheduler:")
		fmt.Printf("  spawn_stagger:    %s\n", cfg.Scheduler.SpawnStagger)
		fmt.Println("hosting:")
		fmt.Printf("  remote:           %s\n", cfg.Hosting.Remote)

		if project := config.GetProjectConfigPath(); project != "" {
			fmt.Printf("\nProject overrides: %s\n", project)
		}
		fmt.Printf("User config: %s\n", config.GetUserConfigPath())
	},
}
