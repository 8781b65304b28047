package pipeline

import (
	"context"
	"fmt"

	"github.com/daydemir/ralph-orchestrator/internal/agent"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
)

// noopHandler discards stream-json progress; one-shot pipeline sessions
// (intake, plan creation, verification, analysis) don't drive the live
// console display the Executor does.
type noopHandler struct{}

func (noopHandler) OnToolUse(string) {}
func (noopHandler) OnText(string)    {}

// runOneShotSession spawns a single non-interactive agent invocation with
// the given role's permission profile and returns its final text result,
// grounded on planexec.invokeAgent's Execute/ParseStreamJSON/Close sequence
// but without the retry/rate-limit/circuit machinery a full task attempt
// needs — one-shot sessions (spec 4.2.2 Phase 1/3, spec 4.3.4) are spawned
// directly, with no budget or circuit-breaker check applied to them.
func runOneShotSession(ctx context.Context, claude llm.Backend, cfg *Config, profile agent.PermissionProfile, prompt, model string) (string, error) {
	flags := agent.Flags(profile, cfg.ProjectRoot, false)

	opts := llm.ExecuteOptions{
		Prompt:         prompt,
		Model:          model,
		AllowedTools:   flags.AllowedTools,
		WorkDir:        cfg.ProjectRoot,
		AddDir:         flags.AddDir,
		PermissionMode: flags.PermissionMode,
		OutputFormat:   llm.OutputFormatStreamJSON,
	}

	reader, err := claude.Execute(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("spawn agent session: %w", err)
	}
	defer reader.Close()

	result, err := llm.ParseStreamJSON(reader, noopHandler{})
	if err != nil {
		return "", fmt.Errorf("parse agent session output: %w", err)
	}
	return result.Result, nil
}
