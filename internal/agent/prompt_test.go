package agent

import (
	"testing"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/stretchr/testify/assert"
)

func TestAssembleFreshAttemptPreamble(t *testing.T) {
	task := &planio.Task{ID: "t1", Name: "do thing", Description: "some description"}
	out := Assemble(PromptInput{Task: task, Attempt: 1})
	assert.Contains(t, out, "fresh start")
	assert.Contains(t, out, "## Task: do thing")
}

func TestAssembleRetryAttemptPreamble(t *testing.T) {
	task := &planio.Task{ID: "t1", Name: "do thing", Description: "desc"}
	out := Assemble(PromptInput{Task: task, Attempt: 3})
	assert.Contains(t, out, "Attempt 3")
	assert.Contains(t, out, "verify state first")
}

func TestAssembleIncludesValidationFindings(t *testing.T) {
	task := &planio.Task{
		ID: "t1", Name: "fix bug", Description: "desc",
		ValidationFindings: []planio.ValidationFinding{{Verdict: "FAIL", Description: "nil check missing"}},
	}
	out := Assemble(PromptInput{Task: task, Attempt: 2})
	assert.Contains(t, out, "Previous validation findings")
	assert.Contains(t, out, "nil check missing")
}

func TestAssembleIncludesSubagentContext(t *testing.T) {
	task := &planio.Task{ID: "t1", Name: "x", Description: "y"}
	out := Assemble(PromptInput{
		Task:    task,
		Attempt: 1,
		Subagent: &SubagentContext{
			WorkerID: "worker-1", WorktreePath: "/repo/.ralph/worktrees/t1",
			SiblingTasks: []string{"t2", "t3"},
		},
	})
	assert.Contains(t, out, "worker-1")
	assert.Contains(t, out, "t2, t3")
}
