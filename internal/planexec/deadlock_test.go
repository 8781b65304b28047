package planexec

import (
	"testing"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/stretchr/testify/assert"
)

func planWithTasks(tasks ...planio.Task) *planio.Plan {
	return &planio.Plan{Sections: []planio.Section{{ID: "s1", Tasks: tasks}}}
}

func TestDetectDeadlockTransitiveChain(t *testing.T) {
	plan := planWithTasks(
		planio.Task{ID: "a", Status: planio.TaskFailed, MaxAttempts: 1, Attempts: 1},
		planio.Task{ID: "b", Status: planio.TaskPending, MaxAttempts: 3, DependsOn: []string{"a"}},
		planio.Task{ID: "c", Status: planio.TaskPending, MaxAttempts: 3, DependsOn: []string{"b"}},
	)

	deadlocked, blocked := detectDeadlock(plan)
	assert.True(t, deadlocked)
	assert.Equal(t, []string{"a"}, blocked["b"])
	assert.Equal(t, []string{"b"}, blocked["c"])
}

func TestDetectDeadlockAllCompletedIsNotDeadlocked(t *testing.T) {
	plan := planWithTasks(
		planio.Task{ID: "a", Status: planio.TaskCompleted},
		planio.Task{ID: "b", Status: planio.TaskCompleted, DependsOn: []string{"a"}},
	)
	deadlocked, _ := detectDeadlock(plan)
	assert.False(t, deadlocked)
}

func TestDetectDeadlockPendingWithSatisfiedDepsIsNotDeadlocked(t *testing.T) {
	plan := planWithTasks(
		planio.Task{ID: "a", Status: planio.TaskCompleted},
		planio.Task{ID: "b", Status: planio.TaskPending, MaxAttempts: 3, DependsOn: []string{"a"}},
	)
	deadlocked, _ := detectDeadlock(plan)
	assert.False(t, deadlocked)
}

func TestFindNextTaskFromSkipsExceededAttempts(t *testing.T) {
	plan := planWithTasks(
		planio.Task{ID: "a", Status: planio.TaskPending, Attempts: 5, MaxAttempts: 3},
		planio.Task{ID: "b", Status: planio.TaskPending, MaxAttempts: 3},
	)
	next := findNextTaskFrom(plan, -1)
	assert.Equal(t, "b", next.ID)
}

func TestFindNextTaskFromHonorsResumeIndex(t *testing.T) {
	plan := planWithTasks(
		planio.Task{ID: "a", Status: planio.TaskPending, MaxAttempts: 3},
		planio.Task{ID: "b", Status: planio.TaskPending, MaxAttempts: 3},
	)
	next := findNextTaskFrom(plan, 1)
	assert.Equal(t, "b", next.ID)
}

func TestFindNextTaskFromWaitsOnUnsatisfiedDeps(t *testing.T) {
	plan := planWithTasks(
		planio.Task{ID: "a", Status: planio.TaskPending, MaxAttempts: 3},
		planio.Task{ID: "b", Status: planio.TaskPending, MaxAttempts: 3, DependsOn: []string{"a"}},
	)
	next := findNextTaskFrom(plan, -1)
	assert.Equal(t, "a", next.ID)
}
