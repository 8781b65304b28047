package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/agent"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/planexec"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/daydemir/ralph-orchestrator/internal/validate"
)

// ItemOutcome is the terminal result of running one backlog item through
// the pipeline (spec 4.2.2).
type ItemOutcome string

const (
	ItemCompleted ItemOutcome = "completed"
	ItemFailed    ItemOutcome = "failed"
	ItemSuspended ItemOutcome = "suspended"
)

// planPathForItem and designPathForItem are the per-item artifact paths
// Phase 1 produces and Phase 2 consumes (spec 4.2.2 step 1).
func planPathForItem(cfg *Config, item *planio.Item) string {
	return filepath.Join(cfg.PlansDir, item.Slug+".yaml")
}

func designPathForItem(cfg *Config, item *planio.Item) string {
	return filepath.Join(cfg.ProjectRoot, "docs", "plans", item.Slug+".md")
}

// ProcessItem drives one feature/defect item through plan creation, Executor
// invocation, verification, and archival (spec 4.2.2), looping back to plan
// creation up to MaxVerificationCycles times on a FAIL verdict.
func ProcessItem(ctx context.Context, cfg *Config, claude llm.Backend, notifier planexec.Notifier, item *planio.Item) (ItemOutcome, error) {
	maxCycles := cfg.MaxVerificationCycles
	if maxCycles <= 0 {
		maxCycles = 3
	}

	for cycle := 1; cycle <= maxCycles; cycle++ {
		if err := runPlanCreation(ctx, cfg, claude, item); err != nil {
			return ItemFailed, fmt.Errorf("plan creation for %s: %w", item.Slug, err)
		}

		planPath := planPathForItem(cfg, item)
		result, err := cfg.Executor.Run(ctx, planPath, planexec.RunOptions{})
		if err != nil {
			return ItemFailed, fmt.Errorf("execute plan for %s: %w", item.Slug, err)
		}
		if result.Deadlocked || result.ExitCode != 0 {
			return ItemFailed, fmt.Errorf("plan %s did not complete (deadlocked=%v exit=%d)", item.Slug, result.Deadlocked, result.ExitCode)
		}
		if result.Suspended {
			// spec 4.1.7: a suspended task halts the plan for a human
			// handshake; leave the item untracked so the next scan picks it
			// back up once the handshake is resolved, rather than treating
			// this cycle as a pass or a failure.
			return ItemSuspended, nil
		}

		verdict, err := runVerification(ctx, cfg, claude, item)
		if err != nil {
			return ItemFailed, fmt.Errorf("verify %s: %w", item.Slug, err)
		}

		if verdict != validate.VerdictFail {
			if err := finishItem(cfg, notifier, item); err != nil {
				return ItemFailed, err
			}
			return ItemCompleted, nil
		}

		_ = os.Remove(planPath)
		if cycle < maxCycles {
			continue
		}

		if err := planio.AppendStatusLine(item.Path, "## Status: "+string(planio.StatusArchivedVerificationFailed)); err != nil {
			return ItemFailed, fmt.Errorf("mark %s archived-verification-failed: %w", item.Slug, err)
		}
		if err := archiveItem(cfg, item); err != nil {
			return ItemFailed, fmt.Errorf("archive exhausted item %s: %w", item.Slug, err)
		}
		notifier.NotifyWarning(fmt.Sprintf("%s exhausted %d verification cycles, archived as failed", item.Slug, maxCycles))
		return ItemFailed, nil
	}

	return ItemFailed, fmt.Errorf("unreachable: verification cycle loop exited for %s", item.Slug)
}

// runPlanCreation spawns a planner-role agent session to produce a design
// document and YAML plan for the item (spec 4.2.2 Phase 1).
func runPlanCreation(ctx context.Context, cfg *Config, claude llm.Backend, item *planio.Item) error {
	prompt := fmt.Sprintf(
		"Read the %s item at %s and produce:\n1. A design document written to %s\n2. A YAML task plan written to %s, following the plan schema.\nItem body:\n\n%s",
		item.Type, item.Path, designPathForItem(cfg, item), planPathForItem(cfg, item), item.Body,
	)
	if cfg.SpecDir != "" {
		prompt += fmt.Sprintf("\n\nProject specs for reference live under %s; consult them for any naming or schema this item touches.", cfg.SpecDir)
	}
	_, err := runOneShotSession(ctx, claude, cfg, agent.ProfileDesign, prompt, "sonnet")
	return err
}

// runVerification spawns a read-only verification session against the
// completed plan's item and appends its verdict to the item's verification
// log (spec 4.2.2 Phase 3).
func runVerification(ctx context.Context, cfg *Config, claude llm.Backend, item *planio.Item) (validate.Verdict, error) {
	prompt := fmt.Sprintf(
		"Verify that the work described in %s has actually been completed correctly in the codebase. "+
			"Respond with **Verdict: PASS|WARN|FAIL** followed by a **Findings:** list of "+
			"`- [PASS|WARN|FAIL] description with file:line`.\n\nItem body:\n\n%s",
		item.Path, item.Body,
	)
	output, err := runOneShotSession(ctx, claude, cfg, agent.ProfileReadOnly, prompt, "sonnet")
	if err != nil {
		return "", err
	}

	parsed, err := validate.Parse(output)
	if err != nil {
		return "", err
	}

	entry := fmt.Sprintf("- %s at %s\n**Verdict: %s**", item.Slug, time.Now().Format(time.RFC3339), parsed.Verdict)
	for _, f := range parsed.Findings {
		entry += fmt.Sprintf("\n- [%s] %s", f.Verdict, f.Description)
	}
	if err := planio.AppendVerificationLog(item.Path, entry); err != nil {
		return "", err
	}

	return parsed.Verdict, nil
}

// finishItem archives a verified item and posts its completion summary
// (spec 4.2.2 Phase 4).
func finishItem(cfg *Config, notifier planexec.Notifier, item *planio.Item) error {
	data, err := os.ReadFile(item.Path)
	if err != nil {
		return fmt.Errorf("reread %s before archive: %w", item.Path, err)
	}
	summary := extractCompletionSummary(string(data))

	if err := archiveItem(cfg, item); err != nil {
		return err
	}
	notifier.NotifyCompletion(summary.Message(item))
	return nil
}
