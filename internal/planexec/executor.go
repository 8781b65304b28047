package planexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/display"
	"github.com/daydemir/ralph-orchestrator/internal/guard"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/daydemir/ralph-orchestrator/internal/smoke"
	"github.com/daydemir/ralph-orchestrator/internal/worktree"
)

// Executor drives a single plan from its first runnable task through to a
// terminal outcome, grounded on the teacher's executor.Executor
// (Config + Backend + Display composition) but reshaped around the
// per-task loop spec 4.1.2 describes rather than one whole-plan
// invocation.
type Executor struct {
	cfg      Config
	claude   llm.Backend
	display  *display.Display
	notifier Notifier

	circuit *guard.CircuitBreaker
	budget  *guard.BudgetGuard
	repo    *worktree.Manager
	planMu  sync.Mutex
}

// New builds an Executor. circuit/budget are (re)built per Run call from
// the plan's own meta block plus any CLI overrides, since both are
// plan-scoped, not process-scoped; New seeds a default circuit breaker so
// per-task and parallel-group execution also work outside Run.
func New(cfg Config, claude llm.Backend, disp *display.Display, notifier Notifier) *Executor {
	if disp == nil {
		disp = display.New()
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Executor{cfg: cfg, claude: claude, display: disp, notifier: notifier, circuit: guard.NewCircuitBreaker()}
}

// Run executes the sequential/parallel main loop of spec 4.1.2-4.1.3 against
// the plan at planPath until it is stopped, paused, completed, or
// deadlocked.
func (e *Executor) Run(ctx context.Context, planPath string, opts RunOptions) (*RunResult, error) {
	plan, err := planio.LoadPlan(planPath)
	if err != nil {
		return nil, err
	}
	if plan.IsFailed() {
		return &RunResult{PlanPath: planPath, ExitCode: 1}, fmt.Errorf("plan %s is already failed, refusing to resume", planPath)
	}

	budgetCfg := mergeBudgetOverrides(plan.Meta.Budget, opts)
	e.circuit = guard.NewCircuitBreaker()
	e.budget = guard.NewBudgetGuard(budgetCfg)

	result := &RunResult{PlanPath: planPath}

	resumeIdx := -1
	if opts.ResumeFromTaskID != "" {
		for i, t := range plan.AllTasks() {
			if t.ID == opts.ResumeFromTaskID {
				resumeIdx = i
				break
			}
		}
	}

	repo := worktree.NewManager(e.cfg.ProjectRoot, e.cfg.WorktreeRoot)
	e.repo = repo

	for {
		if fileExists(e.cfg.StopSemaphorePath()) {
			if err := planio.SavePlan(plan, ""); err != nil {
				return result, err
			}
			result.Stopped = true
			result.ExitCode = 0
			return result, nil
		}

		if !e.circuit.CanProceed(time.Now()) {
			e.display.Warning("circuit breaker open, waiting for reset")
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		if !e.budget.CanProceed(plan.TotalCost()) {
			plan.Meta.Status = planio.PlanStatusPausedQuota
			plan.Meta.PauseReason = e.budget.PauseReason(plan.TotalCost())
			if err := planio.SavePlan(plan, ""); err != nil {
				return result, err
			}
			e.notifier.NotifyWarning(plan.Meta.PauseReason)
			result.BudgetPaused = true
			result.ExitCode = 0
			return result, nil
		}

		next := findNextTaskFrom(plan, resumeIdx)
		resumeIdx = -1

		if next == nil {
			if deadlocked, blocked := detectDeadlock(plan); deadlocked {
				plan.Meta.Status = planio.PlanStatusFailed
				_ = planio.SavePlan(plan, "")
				e.notifier.NotifyError(fmt.Sprintf("plan %s deadlocked: %v", plan.Meta.Name, blocked))
				result.Deadlocked = true
				result.BlockedTasks = blocked
				result.ExitCode = 1
				return result, nil
			}

			if plan.AllTerminal() {
				if !opts.SkipSmoke && e.cfg.Smoke != nil {
					sr, err := smoke.Run(ctx, *e.cfg.Smoke, e.cfg.ProjectRoot)
					if err != nil {
						e.display.Warning(fmt.Sprintf("smoke test error: %v", err))
					} else if !sr.Passed {
						e.display.Warning(fmt.Sprintf("smoke test failed at %s: %s", sr.Step, sr.Output))
					}
				}
				e.notifier.NotifyCompletion(fmt.Sprintf("plan %s completed", plan.Meta.Name))
				result.Completed = true
				result.ExitCode = 0
				return result, nil
			}

			// Non-terminal tasks remain but none are runnable yet (e.g.
			// waiting on a suspension); briefly yield and re-check.
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		if opts.DryRun {
			e.display.Info("dry run", fmt.Sprintf("would execute task %s (%s)", next.ID, next.Name))
			result.ExitCode = 0
			return result, nil
		}

		var execErr error
		var reload bool
		dispatched := []*planio.Task{next}
		if opts.Parallel && next.ParallelGroup != "" {
			group := collectParallelGroup(plan, next)
			if len(group) > 1 && !groupHasConflict(group) {
				dispatched = group
				execErr = e.runParallelGroup(ctx, plan, group)
			} else {
				reload, execErr = e.executeTaskWith(ctx, plan, next, e.cfg.ProjectRoot, nil)
			}
		} else {
			reload, execErr = e.executeTaskWith(ctx, plan, next, e.cfg.ProjectRoot, nil)
		}
		if execErr != nil {
			return result, execErr
		}

		// spec 4.1.7: once any task dispatched this iteration suspends, stop
		// executing further tasks in this plan rather than continuing on to
		// the next runnable one.
		for _, t := range dispatched {
			if t.Status == planio.TaskSuspended {
				result.Suspended = true
				result.SuspendedTaskID = t.ID
				result.ExitCode = 0
				return result, nil
			}
		}

		if reload {
			reloaded, err := planio.LoadPlan(planPath)
			if err != nil {
				e.display.Warning(fmt.Sprintf("reload plan after plan_modified: %v", err))
			} else {
				plan = reloaded
			}
		}

		if opts.SingleTask {
			result.ExitCode = 0
			return result, nil
		}
	}
}

func mergeBudgetOverrides(cfg *planio.BudgetConfig, opts RunOptions) *planio.BudgetConfig {
	merged := planio.BudgetConfig{}
	if cfg != nil {
		merged = *cfg
	}
	if opts.MaxBudgetPct > 0 {
		merged.MaxQuotaPercent = opts.MaxBudgetPct
	}
	if opts.QuotaCeilingUSD > 0 {
		merged.QuotaCeilingUSD = opts.QuotaCeilingUSD
	}
	if opts.ReservedBudgetUSD > 0 {
		merged.ReservedBudgetUSD = opts.ReservedBudgetUSD
	}
	if merged == (planio.BudgetConfig{}) {
		return nil
	}
	return &merged
}
