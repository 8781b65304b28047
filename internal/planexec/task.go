package planexec

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/agent"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/logs"
	"github.com/daydemir/ralph-orchestrator/internal/model"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// rateLimitError signals a rate-limited attempt to a caller that needs to
// coordinate the retry itself rather than have executeTaskWith retry inline
// (spec 4.1.3: a parallel group retries together, not task-by-task).
type rateLimitError struct {
	resetAt time.Time
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.resetAt.Format(time.RFC3339))
}

// attemptOutcome classifies one agent invocation's result (spec 4.1.7).
type attemptOutcome struct {
	RateLimited    bool
	RateLimitReset time.Time
	Succeeded      bool
	Suspended      bool
	Failed         bool
	Handshake      *planio.Handshake
	Usage          planio.TaskUsage
}

// classifyAttempt turns a raw invocation result into an attemptOutcome. The
// handshake file is authoritative (spec 3.4): a process exit error is only
// decisive when no matching handshake was written. A rate-limit message is
// recognized only alongside a non-nil exec error or an absent/mismatched
// handshake, since a task can legitimately mention "limit" in passing while
// still completing normally.
func classifyAttempt(result *llm.ResultEvent, output string, execErr error, hs *planio.Handshake, taskID string, now time.Time) attemptOutcome {
	var out attemptOutcome
	if result != nil {
		out.Usage = llm.ExtractUsage(result)
	}

	matched := hs.MatchesTask(taskID)
	if execErr != nil || !matched {
		if reset, ok := llm.ParseRateLimitReset(output, now); ok {
			out.RateLimited = true
			out.RateLimitReset = reset
			return out
		}
	}

	if !matched {
		out.Failed = true
		return out
	}

	out.Handshake = hs
	switch hs.Status {
	case planio.HandshakeCompleted:
		out.Succeeded = true
	case planio.HandshakeSuspended:
		out.Suspended = true
	default:
		out.Failed = true
	}
	return out
}

// streamHandler adapts a stream-json parse to the display package's
// progress output while also accumulating the full text for rate-limit
// regex matching (spec 4.1.6, 4.1.7).
type streamHandler struct {
	display   ProgressSink
	toolCount int
	text      []string
}

// ProgressSink is the subset of *display.Display planexec needs to report
// live agent progress, kept narrow so tests can substitute a no-op.
type ProgressSink interface {
	ClaudeWorkingOn(id string)
	Claude(text string, toolCount int)
}

func (h *streamHandler) OnToolUse(name string) {
	h.toolCount++
	if h.display != nil {
		h.display.ClaudeWorkingOn(name)
	}
}

func (h *streamHandler) OnText(text string) {
	h.text = append(h.text, text)
	if h.display != nil {
		h.display.Claude(text, h.toolCount)
	}
}

func (h *streamHandler) collected() string {
	out := ""
	for _, t := range h.text {
		out += t + "\n"
	}
	return out
}

// invokeAgent spawns one agent subprocess invocation and parses its
// stream-json output, returning the final result event (nil if the stream
// never produced one), the accumulated display text (for rate-limit
// detection), and any execution error (including a non-zero exit captured
// via Close()).
func (e *Executor) invokeAgent(ctx context.Context, opts llm.ExecuteOptions) (*llm.ResultEvent, string, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.cfg.TaskTimeout)
	defer cancel()

	e.display.ClaudeStart()

	reader, err := e.claude.Execute(execCtx, opts)
	if err != nil {
		return nil, "", err
	}

	h := &streamHandler{display: e.display}
	result, parseErr := llm.ParseStreamJSON(reader, h)
	closeErr := reader.Close()

	if parseErr != nil {
		if closeErr != nil {
			return result, h.collected(), fmt.Errorf("%v (process exit: %w)", parseErr, closeErr)
		}
		return result, h.collected(), parseErr
	}
	e.display.ClaudeDone(h.collected())
	return result, h.collected(), closeErr
}

// effectiveModel computes the model for a normal (non-validator) task
// invocation from the plan's model_escalation block (spec 4.1.10).
func (e *Executor) effectiveModel(plan *planio.Plan, attempt int) string {
	esc := plan.Meta.ModelEscalation
	base := "sonnet"
	enabled := false
	escalateAfter := 1
	maxModel := "opus"
	if esc != nil {
		if esc.StartingModel != "" {
			base = esc.StartingModel
		}
		enabled = esc.Enabled
		if esc.EscalateAfter > 0 {
			escalateAfter = esc.EscalateAfter
		}
		if esc.MaxModel != "" {
			maxModel = esc.MaxModel
		}
	}
	return model.Effective(base, attempt, enabled, escalateAfter, maxModel)
}

// executeTaskWith runs the full per-task state machine (spec 4.1.2 steps
// 5-9): stash, build prompt, spawn the agent (retrying in place on rate
// limits without consuming an attempt), apply the circuit/validation
// policy, and pop the stash. workDir/subagent distinguish the sequential
// path (projectRoot, nil) from a parallel worker (a worktree path, a
// populated SubagentContext) — the parallel path skips stashing entirely,
// since each worktree is already an isolated checkout.
func (e *Executor) executeTaskWith(ctx context.Context, plan *planio.Plan, task *planio.Task, workDir string, subagent *agent.SubagentContext) (reload bool, err error) {
	stashed := false
	if subagent == nil && e.repo != nil && e.repo.IsGitRepo() {
		var serr error
		stashed, serr = stashExcludingPlans(e.cfg.ProjectRoot)
		if serr != nil {
			e.display.Warning(fmt.Sprintf("stash push failed, continuing without isolation: %v", serr))
		}
	}

	e.savePlanField(plan, func() {
		task.Attempts++
		task.Status = planio.TaskInProgress
	})

	role := agent.ResolveRole(task.Agent, task.Name, task.Description)
	profile, _ := agent.LoadProfile(e.cfg.AgentsDir, role)
	flags := agent.Flags(agent.ProfileFor(role), e.cfg.ProjectRoot, e.cfg.SkipPermissions)

	taskLog, logErr := logs.Open(e.cfg.TaskLogPath(task.ID))
	if logErr != nil {
		e.display.Warning(fmt.Sprintf("open task log for %s: %v", task.ID, logErr))
	} else {
		defer taskLog.Close()
		taskLog.Printf("task %s (%s) starting, attempt %d", task.ID, role, task.Attempts)
	}

	var outcome attemptOutcome
	for {
		modelName := e.effectiveModel(plan, task.Attempts)
		if taskLog != nil {
			taskLog.Printf("attempt %d, model %s", task.Attempts, modelName)
		}
		prompt := agent.Assemble(agent.PromptInput{
			Profile:     profile,
			Subagent:    subagent,
			Task:        task,
			PlanDocPath: plan.Meta.PlanDoc,
			Attempt:     task.Attempts,
		})
		_ = planio.ClearHandshake(e.cfg.HandshakePathIn(workDir))

		opts := llm.ExecuteOptions{
			Prompt:          prompt,
			Model:           modelName,
			AllowedTools:    flags.AllowedTools,
			WorkDir:         workDir,
			AddDir:          flags.AddDir,
			PermissionMode:  flags.PermissionMode,
			SkipPermissions: e.cfg.SkipPermissions,
			OutputFormat:    llm.OutputFormatStreamJSON,
			Verbose:         e.cfg.Verbose,
		}

		result, output, execErr := e.invokeAgent(ctx, opts)
		hs, hsErr := planio.ReadHandshake(e.cfg.HandshakePathIn(workDir))
		if hsErr != nil {
			e.display.Warning(fmt.Sprintf("read handshake: %v", hsErr))
		}

		outcome = classifyAttempt(result, output, execErr, hs, task.ID, time.Now())
		task.ModelUsed = modelName

		if outcome.RateLimited {
			if subagent != nil {
				// Part of a parallel group: the group coordinator in
				// parallel.go decrements attempts and resets every member
				// together rather than this one task retrying alone.
				return false, &rateLimitError{resetAt: outcome.RateLimitReset}
			}
			e.savePlanField(plan, func() { task.Attempts-- })
			wait := time.Until(outcome.RateLimitReset.Add(30 * time.Second))
			if wait < 0 {
				wait = 0
			}
			msg := fmt.Sprintf("task %s rate-limited, resuming at %s", task.ID, outcome.RateLimitReset.Format(time.RFC3339))
			e.display.Warning(msg)
			e.notifier.NotifyInfo(msg)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return false, ctx.Err()
			}
			continue
		}
		break
	}

	if outcome.Usage.TotalCostUSD > 0 || outcome.Usage.NumTurns > 0 {
		usage := outcome.Usage
		task.Usage = &usage
	}

	switch {
	case outcome.Succeeded:
		e.circuit.RecordSuccess()
		task.Status = planio.TaskCompleted
		task.ValidationFindings = nil
		e.recordUsage(plan, task)
		if e.shouldValidate(plan, role) {
			e.dispatchValidators(ctx, plan, task, outcome.Handshake.Message)
		}
	case outcome.Suspended:
		task.Status = planio.TaskSuspended
		if err := e.writeSuspensionMarker(plan, task, outcome.Handshake); err != nil {
			return reload, fmt.Errorf("write suspension marker: %w", err)
		}
	default:
		e.circuit.RecordFailure(time.Now())
		if task.Attempts >= task.MaxAttempts {
			task.Status = planio.TaskFailed
		} else {
			task.Status = planio.TaskPending
		}
	}

	reload = outcome.Handshake != nil && outcome.Handshake.PlanModified

	if taskLog != nil {
		taskLog.Printf("task %s finished with status %s", task.ID, task.Status)
	}

	if subagent == nil {
		if err := planio.SavePlan(plan, ""); err != nil {
			return reload, err
		}
		if stashed {
			if err := popStashDiscardingHandshake(e.cfg.ProjectRoot, e.cfg.HandshakePath()); err != nil {
				e.display.Warning(fmt.Sprintf("stash pop: %v", err))
			}
		}
	}

	return reload, nil
}

// shouldValidate reports whether the role that just finished a task appears
// in the plan's validation.run_after list (spec 4.1.12).
func (e *Executor) shouldValidate(plan *planio.Plan, role agent.Role) bool {
	vc := plan.Meta.Validation
	if vc == nil || !vc.Enabled {
		return false
	}
	for _, r := range vc.RunAfter {
		if r == string(role) {
			return true
		}
	}
	return false
}

// recordUsage appends a completed task's usage to the plan's usage report,
// ordered by completion time (spec 5: "Ordering guarantees").
func (e *Executor) recordUsage(plan *planio.Plan, task *planio.Task) {
	if task.Usage == nil {
		return
	}
	path := e.cfg.UsageReportPath(plan.Path)
	report, err := planio.LoadUsageReport(path, plan.Meta.Name)
	if err != nil {
		e.display.Warning(fmt.Sprintf("load usage report: %v", err))
		return
	}
	report.AddEntry(planio.UsageReportEntry{
		TaskID:      task.ID,
		CompletedAt: time.Now(),
		ModelUsed:   task.ModelUsed,
		Usage:       *task.Usage,
	})
	if err := planio.SaveUsageReport(path, report); err != nil {
		e.display.Warning(fmt.Sprintf("save usage report: %v", err))
	}
	e.display.TaskUsage(task.ID, task.Usage.TotalCostUSD, task.Usage.InputTokens, task.Usage.OutputTokens, task.Usage.NumTurns)
}

// writeSuspensionMarker persists a suspension marker when a task reports
// status=suspended (spec 3.6, spec 4.3.6: "The Executor writes a suspension
// marker when a task reports status=suspended"). The bridge later fills in
// ChannelID/ThreadTS once it posts the question, and Answer once a human
// replies.
func (e *Executor) writeSuspensionMarker(plan *planio.Plan, task *planio.Task, hs *planio.Handshake) error {
	slug := strings.TrimSuffix(filepath.Base(plan.Path), filepath.Ext(plan.Path))
	question := ""
	if hs != nil {
		question = hs.Message
	}
	marker := &planio.SuspensionMarker{
		Slug:           slug,
		PlanPath:       plan.Path,
		TaskID:         task.ID,
		Question:       question,
		SuspendedAt:    time.Now(),
		TimeoutMinutes: 30,
	}
	return planio.SaveSuspensionMarker(e.cfg.SuspensionMarkerPath(slug), marker)
}

// savePlanField mutates the plan under the Executor's plan mutex and
// persists it, serializing writes from concurrent parallel-group workers.
func (e *Executor) savePlanField(plan *planio.Plan, mutate func()) {
	e.planMu.Lock()
	mutate()
	err := planio.SavePlan(plan, "")
	e.planMu.Unlock()
	if err != nil {
		e.display.Warning(fmt.Sprintf("save plan: %v", err))
	}
}
