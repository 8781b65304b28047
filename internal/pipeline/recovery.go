package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daydemir/ralph-orchestrator/internal/planexec"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// RecoverInProgressPlans scans the plan directory for plans left mid-flight
// by a prior crash (spec 4.2.1 step 3): any plan with at least one
// in_progress task, excluding plans already marked meta.status=failed (spec
// 4.2.6: failed is terminal, not recoverable). Each in_progress task is reset
// to pending with its attempts counter decremented — the attempt that was
// interrupted never produced a handshake, so it must not count — and the
// Executor is invoked to resume it.
func RecoverInProgressPlans(ctx context.Context, cfg *Config) error {
	entries, err := os.ReadDir(cfg.PlansDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read plans dir %s: %w", cfg.PlansDir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		planPath := filepath.Join(cfg.PlansDir, e.Name())
		if err := recoverOnePlan(ctx, cfg, planPath); err != nil {
			return fmt.Errorf("recover plan %s: %w", planPath, err)
		}
	}
	return nil
}

func recoverOnePlan(ctx context.Context, cfg *Config, planPath string) error {
	plan, err := planio.LoadPlan(planPath)
	if err != nil {
		return err
	}

	if plan.Meta.Status == planio.PlanStatusFailed {
		return nil
	}

	dirty := false
	for _, t := range plan.AllTasks() {
		if t.Status == planio.TaskInProgress {
			t.Status = planio.TaskPending
			if t.Attempts > 0 {
				t.Attempts--
			}
			dirty = true
		}
	}
	if !dirty {
		return nil
	}

	if err := planio.SavePlan(plan, planPath); err != nil {
		return err
	}

	_, err = cfg.Executor.Run(ctx, planPath, planexec.RunOptions{})
	return err
}
