// Package config loads the orchestrator's project-level configuration file,
// .claude/orchestrator-config.yaml (spec.md §6): the build/test/dev-server
// commands the smoke runner executes, and the directories the agent-profile
// and planner packages resolve against.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/utils"
	"github.com/spf13/viper"
)

// Config mirrors .claude/orchestrator-config.yaml.
type Config struct {
	BuildCommand     string `mapstructure:"build_command"`
	TestCommand      string `mapstructure:"test_command"`
	DevServerCommand string `mapstructure:"dev_server_command"`
	DevServerPort    int    `mapstructure:"dev_server_port"`
	AgentsDir        string `mapstructure:"agents_dir"`
	SpecDir          string `mapstructure:"spec_dir"`
}

// Load reads .claude/orchestrator-config.yaml under projectRoot, falling
// back to DefaultConfig if the file doesn't exist — the teacher's
// tolerant-missing-file Load idiom, retargeted at the new config file.
func Load(projectRoot string) (*Config, error) {
	configPath := filepath.Join(projectRoot, ".claude", "orchestrator-config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(projectRoot), nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig(projectRoot)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg, projectRoot)

	return cfg, nil
}

// DefaultConfig returns a config with safe defaults: no build/test/dev-server
// commands (smoke steps are skipped when unset, per internal/smoke), and
// agents/spec directories rooted at the project's .claude tree.
func DefaultConfig(projectRoot string) *Config {
	return &Config{
		AgentsDir: filepath.Join(projectRoot, ".claude", "agents"),
		SpecDir:   filepath.Join(projectRoot, ".claude", "specs"),
	}
}

func applyDefaults(cfg *Config, projectRoot string) {
	defaults := DefaultConfig(projectRoot)
	if cfg.AgentsDir == "" {
		cfg.AgentsDir = defaults.AgentsDir
	}
	if cfg.SpecDir == "" {
		cfg.SpecDir = defaults.SpecDir
	}
}

// ResolveClaudeBinary returns the agent CLI binary to invoke: CLAUDE_CMD
// (spec.md §6) overrides everything when set, otherwise configured (the
// orchestrator config's default, "claude") is resolved against PATH and the
// common install locations via utils.ResolveBinaryPath.
func ResolveClaudeBinary(configured string) string {
	if cmd := os.Getenv("CLAUDE_CMD"); cmd != "" {
		return cmd
	}
	return utils.ResolveBinaryPath(configured)
}

// ReportIntervalSeconds returns PIPELINE_REPORT_INTERVAL (spec.md §6) parsed
// as seconds — the pipeline's idle backlog-rescan cadence — or def if the
// variable is unset or unparseable.
func ReportIntervalSeconds(def time.Duration) time.Duration {
	raw := os.Getenv("PIPELINE_REPORT_INTERVAL")
	if raw == "" {
		return def
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

// SandboxEnabled reports whether ORCHESTRATOR_SANDBOX_ENABLED (spec.md §6)
// is set to a truthy value, gating whether agent subprocesses run with
// --dangerously-skip-permissions or under the sandboxed permission prompt.
func SandboxEnabled() bool {
	v, err := strconv.ParseBool(os.Getenv("ORCHESTRATOR_SANDBOX_ENABLED"))
	return err == nil && v
}
