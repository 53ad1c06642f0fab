// Package config defines the configuration consumed by the journeyheal CLI
// and the value types injected into the engine. The engine itself never
// loads files; it receives a Healing value from its caller.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all journeyheal configuration.
type Config struct {
	Runner  RunnerConfig  `yaml:"runner"`
	Healing Healing       `yaml:"healing"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// RunnerConfig configures the external test runner subprocess.
type RunnerConfig struct {
	Command    string   `yaml:"command"`     // executable, e.g. npx
	Args       []string `yaml:"args"`        // base arguments, e.g. [playwright, test]
	WorkDir    string   `yaml:"work_dir"`    // subprocess working directory
	OutputDir  string   `yaml:"output_dir"`  // report and heal-log directory
	TimeoutSec int      `yaml:"timeout_sec"` // per-invocation wall clock bound
	Project    string   `yaml:"project"`     // default project/browser selection
	Workers    int      `yaml:"workers"`
}

// Healing controls whether and how the healing loop may mutate test source.
// ForbiddenFixes is always enforced, even when a fix type is also listed in
// AllowedFixes.
type Healing struct {
	Enabled              bool     `yaml:"enabled"`
	MaxAttempts          int      `yaml:"max_attempts"`
	AllowedFixes         []string `yaml:"allowed_fixes"`
	ForbiddenFixes       []string `yaml:"forbidden_fixes"`
	MaxTimeoutIncreaseMs int      `yaml:"max_timeout_increase_ms"`
}

// StoreConfig configures the optional healing history store.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration. The default allowed fix
// set deliberately excludes timeout-increase: raising timeouts papers over
// root causes and is opt-in.
func DefaultConfig() *Config {
	return &Config{
		Runner: RunnerConfig{
			Command:    "npx",
			Args:       []string{"playwright", "test"},
			OutputDir:  ".journeyheal",
			TimeoutSec: 300,
			Workers:    1,
		},
		Healing: Healing{
			Enabled:     true,
			MaxAttempts: 3,
			AllowedFixes: []string{
				"missing-await",
				"selector-refine",
				"add-exact",
				"navigation-wait",
				"web-first-assertion",
			},
			MaxTimeoutIncreaseMs: 30000,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    ".journeyheal/history.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, applying it over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	if c.Healing.MaxAttempts < 0 {
		return fmt.Errorf("healing.max_attempts must be >= 0, got %d", c.Healing.MaxAttempts)
	}
	if c.Healing.MaxTimeoutIncreaseMs < 0 {
		return fmt.Errorf("healing.max_timeout_increase_ms must be >= 0, got %d", c.Healing.MaxTimeoutIncreaseMs)
	}
	if c.Runner.Command == "" {
		return fmt.Errorf("runner.command is required")
	}
	return nil
}
