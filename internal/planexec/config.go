// Package planexec implements the per-task execution state machine that
// drives a plan from its first pending task to a terminal outcome (spec
// 4.1.1-4.1.12), grounded on the teacher's internal/executor.Executor: the
// same Config/Display/Backend composition and ExecutePlan-style control
// flow, retargeted from whole-plan-in-one-invocation to the per-task loop
// the spec describes, with circuit/budget/model/validation/worktree gates
// layered in from internal/guard, internal/model, internal/validate, and
// internal/worktree.
package planexec

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/smoke"
)

// Config holds the filesystem layout and agent-invocation settings for one
// Executor, matching the persisted state layout of spec 6.
type Config struct {
	ProjectRoot     string
	AgentsDir       string
	ClaudeBinary    string
	WorktreeRoot    string
	SkipPermissions bool
	Verbose         bool
	TaskTimeout     time.Duration
	Smoke           *smoke.Config
}

// DefaultConfig returns a Config rooted at projectRoot with the spec's
// default task timeout (600s, spec 5 "Every agent subprocess has a
// wall-clock timeout").
func DefaultConfig(projectRoot string) *Config {
	return &Config{
		ProjectRoot:  projectRoot,
		AgentsDir:    filepath.Join(projectRoot, ".claude", "agents"),
		ClaudeBinary: "claude",
		WorktreeRoot: ".ralph/worktrees",
		TaskTimeout:  600 * time.Second,
	}
}

// HandshakePath is the single-writer/single-reader task-status handshake
// file (spec 3.4, spec 6) for a task running directly in the project
// checkout.
func (c *Config) HandshakePath() string {
	return c.HandshakePathIn(c.ProjectRoot)
}

// HandshakePathIn is the task-status handshake file inside a given working
// directory. In sequential execution workDir is always c.ProjectRoot, but a
// parallel-group worker runs the agent CLI with its worktree as WorkDir, so
// its handshake write lands in that worktree's own checkout (spec 4.1.3) —
// scoping the path to workDir keeps concurrent workers from clobbering the
// same file.
func (c *Config) HandshakePathIn(workDir string) string {
	return filepath.Join(workDir, ".claude", "plans", "task-status.json")
}

// StopSemaphorePath is checked at the top of every main-loop iteration
// (spec 4.1.2 step 1).
func (c *Config) StopSemaphorePath() string {
	return filepath.Join(c.ProjectRoot, ".claude", "plans", ".stop")
}

// ClaimsPath is the shared file-claims file for parallel groups (spec 3.5).
func (c *Config) ClaimsPath() string {
	return filepath.Join(c.ProjectRoot, ".claude", "agent-claims.json")
}

// StatusPath is a worker's heartbeat file path (spec 3.5, spec 6).
func (c *Config) StatusPath(workerID string) string {
	return filepath.Join(c.ProjectRoot, ".claude", "subagent-status", workerID+".json")
}

// SuspensionMarkerPath is where the Executor writes a marker when a task
// reports status=suspended, keyed by the plan's own name so the pipeline
// and bridge can find it by item slug (spec 3.6, spec 4.3.6, spec 6).
func (c *Config) SuspensionMarkerPath(slug string) string {
	return filepath.Join(c.ProjectRoot, ".claude", "suspended", slug+".json")
}

// UsageReportPath is the usage report JSON written alongside a plan
// (spec 4.1.1, spec 6).
func (c *Config) UsageReportPath(planPath string) string {
	base := strings.TrimSuffix(filepath.Base(planPath), filepath.Ext(planPath))
	return filepath.Join(c.ProjectRoot, ".claude", "plans", "logs", base+"-usage-report.json")
}

// TaskLogPath is one task's own transcript log, the third tier of spec 6's
// two-tier log layout (".claude/plans/logs/task-*.log").
func (c *Config) TaskLogPath(taskID string) string {
	return filepath.Join(c.ProjectRoot, ".claude", "plans", "logs", "task-"+taskID+".log")
}

// RunOptions are the Executor's invocation flags (spec 4.1.1, spec 6 CLI
// surface).
type RunOptions struct {
	DryRun           bool
	ResumeFromTaskID string
	SingleTask       bool
	SkipSmoke        bool
	Verbose          bool
	Parallel         bool
	MaxBudgetPct     float64
	QuotaCeilingUSD  float64
	ReservedBudgetUSD float64
}

// RunResult is the outcome of one Run call (spec 4.1.1: "exit code 0 on
// successful completion or budget-pause, non-zero on deadlock, fatal
// error, or exhausted circuit breaker").
type RunResult struct {
	PlanPath        string
	ExitCode        int
	Completed       bool
	Stopped         bool
	Deadlocked      bool
	BudgetPaused    bool
	Suspended       bool
	SuspendedTaskID string
	BlockedTasks    map[string][]string
}

// Notifier is the narrow interface planexec needs from the messaging
// bridge; the bridge implements it once internal/bridge exists (spec 9:
// "pass a cancellation context with an attached notifier" rather than a
// global mutable Slack reference).
type Notifier interface {
	NotifyInfo(message string)
	NotifyWarning(message string)
	NotifyError(message string)
	NotifyCompletion(message string)
}

// NoopNotifier discards every notification; used by callers (tests, the
// `--once` pipeline dry-run) that don't wire a chat transport.
type NoopNotifier struct{}

func (NoopNotifier) NotifyInfo(string)       {}
func (NoopNotifier) NotifyWarning(string)    {}
func (NoopNotifier) NotifyError(string)      {}
func (NoopNotifier) NotifyCompletion(string) {}
