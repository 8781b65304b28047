package planio

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() *Plan {
	return &Plan{
		Meta: Meta{
			Name:    "sample",
			Created: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Sections: []Section{
			{
				ID:   "s1",
				Name: "Section One",
				Tasks: []Task{
					{ID: "t1", Name: "first", Status: TaskPending, MaxAttempts: 3},
					{ID: "t2", Name: "second", Status: TaskPending, MaxAttempts: 3, DependsOn: []string{"t1"}},
				},
			},
		},
	}
}

func TestPlanRoundTrip(t *testing.T) {
	plan := samplePlan()
	path := filepath.Join(t.TempDir(), "plan.yaml")

	require.NoError(t, SavePlan(plan, path))

	loaded, err := LoadPlan(path)
	require.NoError(t, err)

	assert.Equal(t, plan.Meta.Name, loaded.Meta.Name)
	assert.Len(t, loaded.AllTasks(), 2)
	assert.Equal(t, []string{"t1"}, loaded.FindTask("t2").DependsOn)
}

func TestValidateDuplicateTaskID(t *testing.T) {
	plan := samplePlan()
	plan.Sections[0].Tasks[1].ID = "t1"

	err := Validate(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task id")
}

func TestValidateUnknownDependency(t *testing.T) {
	plan := samplePlan()
	plan.Sections[0].Tasks[1].DependsOn = []string{"ghost"}

	err := Validate(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestValidateDetectsCycle(t *testing.T) {
	plan := samplePlan()
	plan.Sections[0].Tasks[0].DependsOn = []string{"t2"}

	err := Validate(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidateAcceptsDAG(t *testing.T) {
	plan := samplePlan()
	require.NoError(t, Validate(plan))
}

func TestTotalCost(t *testing.T) {
	plan := samplePlan()
	plan.Sections[0].Tasks[0].Usage = &TaskUsage{TotalCostUSD: 0.10}
	plan.Sections[0].Tasks[1].Usage = &TaskUsage{TotalCostUSD: 0.15}

	assert.InDelta(t, 0.25, plan.TotalCost(), 1e-9)
}

func TestAllTerminal(t *testing.T) {
	plan := samplePlan()
	assert.False(t, plan.AllTerminal())

	plan.Sections[0].Tasks[0].Status = TaskCompleted
	plan.Sections[0].Tasks[1].Status = TaskCompleted
	assert.True(t, plan.AllTerminal())
}
