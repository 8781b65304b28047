// Package pipeline implements the work-item pipeline (spec 4.2): the
// outer daemon loop that ingests ideas, recovers interrupted plans, scans
// the backlog directories, and drives each eligible item through its
// plan/execute/verify/archive phases, invoking internal/planexec.Executor as
// its execute step. Grounded on the teacher's internal/executor.LoopWithAnalysis
// (find-next-unit, process, loop) and internal/planner's one-shot
// agent-session idiom, generalized from "one plan at a time" to "one backlog
// item at a time, each producing its own plan".
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/planexec"
)

// Config is the filesystem layout and tunables for one Pipeline (spec 6's
// persisted state layout, spec 4.2.1/4.2.5 tunables).
type Config struct {
	ProjectRoot string
	AgentsDir   string
	SpecDir     string

	DefectBacklogDir   string
	FeatureBacklogDir  string
	AnalysisBacklogDir string
	CompletedDir       string
	IdeasDir           string
	PlansDir           string
	ReportsDir         string

	WatchFiles       []string
	WatchInterval    time.Duration
	IdleWaitInterval time.Duration

	MaxVerificationCycles int

	Executor PlanRunner
}

// PlanRunner is the narrow interface the pipeline needs from the Executor
// (spec 4.2.2 Phase 2: "invoke the Executor as a subprocess on the generated
// plan"); satisfied by *planexec.Executor, narrowed so tests can substitute
// a fake without constructing a full Executor.
type PlanRunner interface {
	Run(ctx context.Context, planPath string, opts planexec.RunOptions) (*planexec.RunResult, error)
}

// DefaultConfig lays out the directories spec 6 names under projectRoot.
func DefaultConfig(projectRoot string) *Config {
	docs := filepath.Join(projectRoot, "docs")
	return &Config{
		ProjectRoot:           projectRoot,
		AgentsDir:             filepath.Join(projectRoot, ".claude", "agents"),
		DefectBacklogDir:      filepath.Join(docs, "defect-backlog"),
		FeatureBacklogDir:     filepath.Join(docs, "feature-backlog"),
		AnalysisBacklogDir:    filepath.Join(docs, "analysis-backlog"),
		CompletedDir:          filepath.Join(docs, "completed-backlog"),
		IdeasDir:              filepath.Join(docs, "ideas"),
		PlansDir:              filepath.Join(projectRoot, ".claude", "plans"),
		ReportsDir:            filepath.Join(docs, "reports"),
		WatchInterval:         10 * time.Second,
		IdleWaitInterval:      30 * time.Second,
		MaxVerificationCycles: 3,
	}
}

// PIDPath is the pipeline's own PID file (spec 6).
func (c *Config) PIDPath() string {
	return filepath.Join(c.ProjectRoot, ".claude", "pipeline.pid")
}

// PipelineLogPath is the pipeline-wide log of the two-tier log layout
// (spec 6: "logs/pipeline.log").
func (c *Config) PipelineLogPath() string {
	return filepath.Join(c.ProjectRoot, "logs", "pipeline.log")
}

// ItemLogPath is the per-item log of the two-tier log layout (spec 6:
// "logs/<slug>.log"), one file per backlog item slug across every cycle it
// goes through.
func (c *Config) ItemLogPath(slug string) string {
	return filepath.Join(c.ProjectRoot, "logs", slug+".log")
}

// StopSemaphorePath matches the Executor's stop semaphore (spec 4.2.3:
// force_pipeline_exit also creates this so a restart halts too).
func (c *Config) StopSemaphorePath() string {
	return filepath.Join(c.ProjectRoot, ".claude", "plans", ".stop")
}

// StateFilePath persists the completed/failed item slug sets across restarts
// (spec 4.2.1 step 4, spec 4.2.3).
func (c *Config) StateFilePath() string {
	return filepath.Join(c.ProjectRoot, ".claude", "pipeline-state.json")
}

// RequiredDirs lists every directory the pipeline must ensure exists at
// startup (spec 4.2.1: "ensure required directories exist").
func (c *Config) RequiredDirs() []string {
	return []string{
		c.DefectBacklogDir, c.FeatureBacklogDir, c.AnalysisBacklogDir,
		filepath.Join(c.CompletedDir, "defects"),
		filepath.Join(c.CompletedDir, "features"),
		filepath.Join(c.CompletedDir, "analyses"),
		c.IdeasDir, filepath.Join(c.IdeasDir, "processed"),
		c.PlansDir, filepath.Join(c.PlansDir, "logs"),
		c.ReportsDir,
		filepath.Join(c.ProjectRoot, "docs", "plans"),
		filepath.Join(c.ProjectRoot, "docs", "designs"),
	}
}

// RunOptions are the Pipeline's CLI invocation flags (spec 6 CLI surface).
type RunOptions struct {
	Once    bool
	DryRun  bool
	Verbose bool
}
