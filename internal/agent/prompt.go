package agent

import (
	"fmt"
	"strings"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// SubagentContext is injected into a parallel-group task's prompt (spec
// 4.1.3: "worker id, worktree path, sibling task ids, claim/heartbeat
// protocol instructions").
type SubagentContext struct {
	WorkerID     string
	WorktreePath string
	SiblingTasks []string
}

// PromptInput carries everything Assemble needs to build one task's prompt.
type PromptInput struct {
	Profile      *Profile
	Subagent     *SubagentContext
	Task         *planio.Task
	PlanDocPath  string
	Attempt      int
}

// Assemble builds the full prompt text in the order spec 4.1.4 requires:
// role markdown, subagent context, task identity, plan doc path, prior
// validation findings, attempt-aware preamble, and the handshake contract.
func Assemble(in PromptInput) string {
	var b strings.Builder

	if in.Profile != nil && in.Profile.Body != "" {
		b.WriteString(in.Profile.Body)
		b.WriteString("\n\n")
	}

	if in.Subagent != nil {
		fmt.Fprintf(&b, "## Subagent context\nWorker id: %s\nWorktree path: %s\nSibling tasks: %s\nClaim your files before editing and write a heartbeat at least every 5 minutes.\n\n",
			in.Subagent.WorkerID, in.Subagent.WorktreePath, strings.Join(in.Subagent.SiblingTasks, ", "))
	}

	fmt.Fprintf(&b, "## Task: %s\nID: %s\n%s\n\n", in.Task.Name, in.Task.ID, in.Task.Description)

	if in.PlanDocPath != "" {
		fmt.Fprintf(&b, "Plan document: %s\n\n", in.PlanDocPath)
	}

	if len(in.Task.ValidationFindings) > 0 {
		b.WriteString("## Previous validation findings (retry context)\n")
		for _, f := range in.Task.ValidationFindings {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Verdict, f.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString(attemptPreamble(in.Attempt))
	b.WriteString("\n\n")
	b.WriteString(handshakeContract)

	return b.String()
}

func attemptPreamble(attempt int) string {
	if attempt <= 1 {
		return "This is a fresh start; status is in_progress because the orchestrator assigned it to you."
	}
	return fmt.Sprintf("Attempt %d; a previous attempt failed, verify state first.", attempt)
}

const handshakeContract = `## Completion contract
When you are done, write a JSON handshake file describing the outcome:
{"task_id": "<this task's id>", "status": "completed|failed|suspended", "message": "...", "timestamp": "<RFC3339>", "plan_modified": true|false}
Only ever write the handshake for this task's id. If you need a human decision, set status to "suspended" and explain the question in "message".`
