package planexec

import (
	"context"
	"fmt"

	"github.com/daydemir/ralph-orchestrator/internal/agent"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/model"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/daydemir/ralph-orchestrator/internal/validate"
)

// dispatchValidators runs every configured validator against a task that
// just completed, sequentially (spec 4.1.12: "Validators never run in
// parallel with each other"), and applies the aggregated verdict.
func (e *Executor) dispatchValidators(ctx context.Context, plan *planio.Plan, task *planio.Task, resultMessage string) {
	vc := plan.Meta.Validation
	validationModel := model.ForValidation(modelEscalationValidationModel(plan), "sonnet")

	var results []*validate.Result
	for _, name := range vc.Validators {
		flags := agent.Flags(agent.ProfileVerification, e.cfg.ProjectRoot, e.cfg.SkipPermissions)
		prompt := validatorPrompt(name, task, resultMessage)

		_ = planio.ClearHandshake(e.cfg.HandshakePath())
		opts := llm.ExecuteOptions{
			Prompt:          prompt,
			Model:           validationModel,
			AllowedTools:    flags.AllowedTools,
			WorkDir:         e.cfg.ProjectRoot,
			AddDir:          flags.AddDir,
			PermissionMode:  flags.PermissionMode,
			SkipPermissions: e.cfg.SkipPermissions,
			OutputFormat:    llm.OutputFormatStreamJSON,
			Verbose:         e.cfg.Verbose,
		}

		_, output, execErr := e.invokeAgent(ctx, opts)
		if execErr != nil {
			e.display.Warning(fmt.Sprintf("validator %s invocation failed: %v", name, execErr))
			continue
		}
		parsed, err := validate.Parse(output)
		if err != nil {
			e.display.Warning(fmt.Sprintf("validator %s: %v", name, err))
			continue
		}
		results = append(results, parsed)
	}

	verdict := validate.Aggregate(results)
	findings := validate.AllFindings(results)

	cap := vc.MaxValidationAttempts
	if cap <= 0 {
		cap = task.MaxAttempts
	}

	switch verdict {
	case validate.VerdictFail:
		task.ValidationFindings = findings
		if task.Attempts < cap {
			task.Status = planio.TaskPending
		} else {
			task.Status = planio.TaskFailed
		}
	case validate.VerdictWarn:
		e.display.Warning(fmt.Sprintf("task %s validated with warnings", task.ID))
		task.Status = planio.TaskCompleted
		task.ValidationFindings = nil
	default:
		task.Status = planio.TaskCompleted
		task.ValidationFindings = nil
	}
}

func modelEscalationValidationModel(plan *planio.Plan) string {
	if plan.Meta.ModelEscalation == nil {
		return ""
	}
	return plan.Meta.ModelEscalation.ValidationModel
}

// validatorPrompt builds the fixed-format prompt spec 4.1.12 requires: the
// original task description, its result message, and the exact verdict
// grammar the validator must reproduce.
func validatorPrompt(validatorName string, task *planio.Task, resultMessage string) string {
	return fmt.Sprintf(`You are the %q validator reviewing a just-completed task.

Task: %s
Description: %s
Result reported by the implementing agent: %s

Produce your verdict in exactly this format, with one finding per line:
**Verdict: PASS|WARN|FAIL**
**Findings:**
- [PASS|WARN|FAIL] description with file:line
`, validatorName, task.Name, task.Description, resultMessage)
}
