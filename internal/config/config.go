// Package config handles configuration loading and management for fanout.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/gridley-labs/fanout/pkg/models"
)

// Config holds all configuration for fanout. It is materialized once at
// startup and passed explicitly into the session manager; nothing reads
// process-wide state afterwards.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Defaults   DefaultsConfig   `mapstructure:"defaults"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Decomposer DecomposerConfig `mapstructure:"decomposer"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Workspaces WorkspacesConfig `mapstructure:"workspaces"`
	Hosting    HostingConfig    `mapstructure:"hosting"`
}

// AnthropicConfig holds Anthropic API settings for the agent-backed
// decomposer.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseAWSBedrock routes API calls through AWS Bedrock.
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// DefaultsConfig holds default values for fanout sessions.
type DefaultsConfig struct {
	BaseBranch     string        `mapstructure:"base_branch"`
	MergeStrategy  string        `mapstructure:"merge_strategy"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	WorkerTimeout  time.Duration `mapstructure:"worker_timeout"`
}

// Strategy returns the default merge strategy as a model value.
func (d DefaultsConfig) Strategy() models.MergeStrategy {
	return models.MergeStrategy(d.MergeStrategy)
}

// AgentConfig describes the modification agent subprocess.
type AgentConfig struct {
	// Command is the agent binary invoked per worker.
	Command string `mapstructure:"command"`
	// Args are passed before the workspace-bound invocation.
	Args []string `mapstructure:"args"`
}

// DecomposerConfig selects and configures the decomposition strategy.
type DecomposerConfig struct {
	// Strategy is "agent" or "template".
	Strategy string `mapstructure:"strategy"`
	// TemplatePath points at the YAML plan for the template strategy.
	TemplatePath string `mapstructure:"template_path"`
	// MinTasks and MaxTasks bound the accepted decomposition size.
	MinTasks int `mapstructure:"min_tasks"`
	MaxTasks int `mapstructure:"max_tasks"`
}

// SchedulerConfig holds scheduler tuning knobs.
type SchedulerConfig struct {
	// SpawnStagger is the delay between issuing parallel workers.
	SpawnStagger time.Duration `mapstructure:"spawn_stagger"`
	// PollInterval is the heartbeat period while waiting on running workers.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// WorkspacesConfig holds workspace placement settings.
type WorkspacesConfig struct {
	// BaseDir is where isolated worktrees are created.
	BaseDir string `mapstructure:"base_dir"`
}

// HostingConfig holds repo-hosting collaborator settings.
type HostingConfig struct {
	// Remote is the git remote artifacts are pushed to.
	Remote string `mapstructure:"remote"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
//  1. Environment variables (ANTHROPIC_API_KEY, FANOUT_*)
//  2. Project config (.fanout.yaml in current directory or parent)
//  3. User config (~/.config/fanout/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FANOUT")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("defaults.base_branch", "main")
	v.SetDefault("defaults.merge_strategy", string(models.StrategySinglePR))
	v.SetDefault("defaults.max_concurrency", 3)
	v.SetDefault("defaults.worker_timeout", "15m")

	v.SetDefault("agent.command", "claude")
	v.SetDefault("agent.args", []string{"-p", "--dangerously-skip-permissions"})

	v.SetDefault("decomposer.strategy", "agent")
	v.SetDefault("decomposer.template_path", "")
	v.SetDefault("decomposer.min_tasks", 1)
	v.SetDefault("decomposer.max_tasks", 8)

	v.SetDefault("scheduler.spawn_stagger", "2s")
	v.SetDefault("scheduler.poll_interval", "250ms")

	v.SetDefault("workspaces.base_dir", "")

	v.SetDefault("hosting.remote", "origin")
}

// Default returns a Config with built-in default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			BaseBranch:     "main",
			MergeStrategy:  string(models.StrategySinglePR),
			MaxConcurrency: 3,
			WorkerTimeout:  15 * time.Minute,
		},
		Agent: AgentConfig{
			Command: "claude",
			Args:    []string{"-p", "--dangerously-skip-permissions"},
		},
		Decomposer: DecomposerConfig{
			Strategy: "agent",
			MinTasks: 1,
			MaxTasks: 8,
		},
		Scheduler: SchedulerConfig{
			SpawnStagger: 2 * time.Second,
			PollInterval: 250 * time.Millisecond,
		},
		Hosting: HostingConfig{
			Remote: "origin",
		},
	}
}

// getUserConfigDir returns the XDG config directory for fanout.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fanout")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "fanout")
	}
	return filepath.Join(home, ".config", "fanout")
}

// findProjectConfig searches for .fanout.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".fanout.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
