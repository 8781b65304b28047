package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/daydemir/ralph-orchestrator/internal/display"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/logs"
	"github.com/daydemir/ralph-orchestrator/internal/planexec"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// Pipeline drives the work-item main loop of spec 4.2.1: ingest, recover,
// scan, process one item, check for hot-reload, repeat. Grounded on the
// teacher's internal/executor.LoopWithAnalysis shape (find next unit of
// work, process it, loop until none remain), generalized from "next
// incomplete plan" to "next eligible backlog item".
type Pipeline struct {
	cfg      *Config
	claude   llm.Backend
	display  *display.Display
	notifier planexec.Notifier
	reloader *Reloader
	log      *logs.FileLogger
}

// New builds a Pipeline. claude drives every one-shot agent session this
// package spawns directly (intake, plan creation, verification, analysis);
// cfg.Executor drives Phase 2 of the feature/defect item pipeline.
func New(cfg *Config, claude llm.Backend, disp *display.Display, notifier planexec.Notifier) *Pipeline {
	if disp == nil {
		disp = display.New()
	}
	if notifier == nil {
		notifier = planexec.NoopNotifier{}
	}
	return &Pipeline{cfg: cfg, claude: claude, display: disp, notifier: notifier}
}

// Run executes the pipeline main loop until stopped, exhausted (in --once
// mode), or it hits an unrecoverable state via forcePipelineExit.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) error {
	if err := p.startup(); err != nil {
		return err
	}
	p.display.PipelineBox(
		fmt.Sprintf("project: %s", p.cfg.ProjectRoot),
		fmt.Sprintf("once: %v  dry-run: %v", opts.Once, opts.DryRun),
	)
	defer os.Remove(p.cfg.PIDPath())
	if p.log != nil {
		defer p.log.Close()
		p.log.Println("pipeline started")
		defer p.log.Println("pipeline stopped")
	}

	if p.reloader != nil {
		p.reloader.Start()
		defer p.reloader.Stop()
	}

	for {
		if fileExists(p.cfg.StopSemaphorePath()) {
			return nil
		}

		if err := IngestIdeas(ctx, p.cfg, p.claude); err != nil {
			p.display.Warning(fmt.Sprintf("idea ingestion: %v", err))
		}

		if err := RecoverInProgressPlans(ctx, p.cfg); err != nil {
			p.display.Warning(fmt.Sprintf("plan recovery: %v", err))
		}

		state, err := loadTrackingState(p.cfg.StateFilePath())
		if err != nil {
			return p.forcePipelineExit(fmt.Sprintf("load pipeline state: %v", err))
		}

		eligible, scanErrs := ScanBacklog(p.cfg, state)
		for _, e := range scanErrs {
			p.display.Warning(fmt.Sprintf("backlog scan: %v", e))
		}

		if len(eligible) == 0 {
			if opts.Once {
				return nil
			}
			if p.reloader != nil && p.reloader.RestartPending() {
				return Restart()
			}
			waitForChangeOrTimeout([]string{p.cfg.DefectBacklogDir, p.cfg.FeatureBacklogDir, p.cfg.AnalysisBacklogDir, p.cfg.IdeasDir}, p.cfg.IdleWaitInterval)
			continue
		}

		item := eligible[0]
		if opts.DryRun {
			p.display.Info("dry run", fmt.Sprintf("would process %s item %s", item.Type, item.Slug))
		} else if err := p.processOne(ctx, item, state); err != nil {
			p.display.Error(err.Error())
		}

		if err := saveTrackingState(p.cfg.StateFilePath(), state); err != nil {
			p.display.Warning(fmt.Sprintf("save pipeline state: %v", err))
		}

		if opts.Once {
			return nil
		}

		if p.reloader != nil && p.reloader.RestartPending() {
			return Restart()
		}
	}
}

func (p *Pipeline) processOne(ctx context.Context, item *planio.Item, state *trackingState) error {
	p.display.Info("pipeline", fmt.Sprintf("processing %s %s", item.Type, item.Slug))
	if p.log != nil {
		p.log.Printf("processing %s %s", item.Type, item.Slug)
	}

	itemLog, err := logs.Open(p.cfg.ItemLogPath(item.Slug))
	if err != nil {
		p.display.Warning(fmt.Sprintf("open item log for %s: %v", item.Slug, err))
	} else {
		defer itemLog.Close()
		itemLog.Printf("pipeline picked up %s (%s)", item.Slug, item.Type)
	}

	if item.Type == planio.ItemAnalysis {
		err := ProcessAnalysisItem(ctx, p.cfg, p.claude, p.notifier, p.display, item)
		if itemLog != nil {
			itemLog.Printf("analysis outcome: err=%v", err)
		}
		if err != nil {
			state.markFailed(item.Slug)
			return err
		}
		state.markCompleted(item.Slug)
		return nil
	}

	outcome, err := ProcessItem(ctx, p.cfg, p.claude, p.notifier, item)
	if itemLog != nil {
		itemLog.Printf("outcome: %s err=%v", outcome, err)
	}
	if err != nil {
		state.markFailed(item.Slug)
		return err
	}
	switch outcome {
	case ItemCompleted:
		state.markCompleted(item.Slug)
		p.display.Success(fmt.Sprintf("%s %s complete", item.Type, item.Slug))
	case ItemSuspended:
		p.display.Info("pipeline", fmt.Sprintf("%s %s suspended pending handshake", item.Type, item.Slug))
	default:
		state.markFailed(item.Slug)
	}
	return nil
}

// startup ensures required directories exist, writes the PID file, builds
// the hot-reload snapshot, and sweeps any uncommitted archival changes into
// a single recovery commit (spec 4.2.1).
func (p *Pipeline) startup() error {
	for _, d := range p.cfg.RequiredDirs() {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("ensure dir %s: %w", d, err)
		}
	}

	if err := os.WriteFile(p.cfg.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	if p.log == nil {
		logger, err := logs.Open(p.cfg.PipelineLogPath())
		if err != nil {
			p.display.Warning(fmt.Sprintf("open pipeline log: %v", err))
		} else {
			p.log = logger
		}
	}

	if len(p.cfg.WatchFiles) > 0 {
		p.reloader = NewReloader(p.cfg.WatchFiles, p.cfg.WatchInterval)
	}

	if err := sweepArchivalRecoveryCommit(p.cfg); err != nil {
		p.display.Warning(fmt.Sprintf("recovery commit sweep: %v", err))
	}

	return nil
}

// forcePipelineExit implements spec 4.2.3: create the stop semaphore so a
// restart also halts, notify if possible, and return a non-nil error so the
// caller exits non-zero.
func (p *Pipeline) forcePipelineExit(reason string) error {
	_ = os.MkdirAll(filepath.Dir(p.cfg.StopSemaphorePath()), 0o755)
	_ = os.WriteFile(p.cfg.StopSemaphorePath(), []byte(reason), 0o644)
	p.notifier.NotifyError(fmt.Sprintf("pipeline forced exit: %s", reason))
	return fmt.Errorf("force_pipeline_exit: %s", reason)
}

// sweepArchivalRecoveryCommit commits any uncommitted changes under the
// completed-backlog directory left by a prior crash mid-archive (spec
// 4.2.1: "sweep uncommitted changes in archival directories into a single
// recovery commit").
func sweepArchivalRecoveryCommit(cfg *Config) error {
	status, err := gitStatusPorcelain(cfg.ProjectRoot, cfg.CompletedDir)
	if err != nil || status == "" {
		return err
	}
	if err := gitCmd(cfg.ProjectRoot, "add", cfg.CompletedDir); err != nil {
		return err
	}
	return gitCmd(cfg.ProjectRoot, "commit", "-m", "recovery: sweep uncommitted archival changes")
}
