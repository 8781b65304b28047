package planexec

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend simulates an agent CLI invocation by writing a handshake file
// to the configured path and returning a minimal stream-json transcript,
// mirroring the handshake-writing contract the real claude CLI fulfills
// (spec 3.4).
type fakeBackend struct {
	handshakePath string
	status        planio.HandshakeStatus
	message       string
	calls         int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Execute(ctx context.Context, opts llm.ExecuteOptions) (io.ReadCloser, error) {
	f.calls++
	hs := planio.Handshake{TaskID: taskIDFromPrompt(opts.Prompt), Status: f.status, Message: f.message}
	data, _ := json.Marshal(hs)
	_ = os.MkdirAll(filepath.Dir(f.handshakePath), 0o755)
	_ = os.WriteFile(f.handshakePath, data, 0o644)

	lines := []string{
		`{"type":"assistant","message":{"content":[{"type":"text","text":"working"}]}}`,
		`{"type":"result","total_cost_usd":0.02,"num_turns":1}`,
	}
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n")), nil
}

// taskIDFromPrompt pulls the task ID the prompt assembler embeds (the "ID: "
// line of the "## Task" block) so the fake handshake always matches the task
// actually being run.
func taskIDFromPrompt(prompt string) string {
	const marker = "\nID: "
	idx := strings.Index(prompt, marker)
	if idx == -1 {
		return ""
	}
	rest := prompt[idx+len(marker):]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

func writeTestPlan(t *testing.T, dir string) string {
	t.Helper()
	plan := &planio.Plan{
		Meta: planio.Meta{Name: "test-plan"},
		Sections: []planio.Section{
			{ID: "s1", Tasks: []planio.Task{
				{ID: "t1", Name: "Do the thing", Description: "Do the thing", Status: planio.TaskPending, MaxAttempts: 3},
			}},
		},
	}
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, planio.SavePlan(plan, path))
	return path
}

func TestExecutorRunCompletesSingleTask(t *testing.T) {
	dir := t.TempDir()
	planPath := writeTestPlan(t, dir)

	cfg := *DefaultConfig(dir)
	backend := &fakeBackend{handshakePath: cfg.HandshakePath(), status: planio.HandshakeCompleted, message: "done"}

	exec := New(cfg, backend, nil, nil)
	result, err := exec.Run(context.Background(), planPath, RunOptions{SkipSmoke: true})
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, 1, backend.calls)

	reloaded, err := planio.LoadPlan(planPath)
	require.NoError(t, err)
	task := reloaded.FindTask("t1")
	require.NotNil(t, task)
	assert.Equal(t, planio.TaskCompleted, task.Status)
	assert.Equal(t, 1, task.Attempts)
}

func TestExecutorRunFailsTaskAfterMaxAttempts(t *testing.T) {
	dir := t.TempDir()
	plan := &planio.Plan{
		Meta: planio.Meta{Name: "test-plan"},
		Sections: []planio.Section{
			{ID: "s1", Tasks: []planio.Task{
				{ID: "t1", Name: "Flaky", Description: "Flaky", Status: planio.TaskPending, MaxAttempts: 1},
				// t2 stays non-terminal behind the failed t1, which is what
				// makes the plan deadlocked rather than simply finished.
				{ID: "t2", Name: "After", Description: "After", Status: planio.TaskPending, MaxAttempts: 1, DependsOn: []string{"t1"}},
			}},
		},
	}
	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, planio.SavePlan(plan, planPath))

	cfg := *DefaultConfig(dir)
	backend := &fakeBackend{handshakePath: cfg.HandshakePath(), status: planio.HandshakeFailed, message: "broke"}

	exec := New(cfg, backend, nil, nil)
	result, err := exec.Run(context.Background(), planPath, RunOptions{SkipSmoke: true})
	require.NoError(t, err)
	assert.True(t, result.Deadlocked)
	assert.Equal(t, 1, result.ExitCode)

	reloaded, err := planio.LoadPlan(planPath)
	require.NoError(t, err)
	assert.Equal(t, planio.TaskFailed, reloaded.FindTask("t1").Status)
	assert.Equal(t, planio.PlanStatusFailed, reloaded.Meta.Status)
}

func TestExecutorRunStopsOnSemaphore(t *testing.T) {
	dir := t.TempDir()
	planPath := writeTestPlan(t, dir)

	cfg := *DefaultConfig(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.StopSemaphorePath()), 0o755))
	require.NoError(t, os.WriteFile(cfg.StopSemaphorePath(), []byte("stop"), 0o644))

	backend := &fakeBackend{handshakePath: cfg.HandshakePath(), status: planio.HandshakeCompleted}
	exec := New(cfg, backend, nil, nil)

	result, err := exec.Run(context.Background(), planPath, RunOptions{SkipSmoke: true})
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Equal(t, 0, backend.calls)
}

func TestExecutorRunHaltsOnSuspendedTask(t *testing.T) {
	dir := t.TempDir()
	plan := &planio.Plan{
		Meta: planio.Meta{Name: "test-plan"},
		Sections: []planio.Section{
			{ID: "s1", Tasks: []planio.Task{
				{ID: "t1", Status: planio.TaskPending, MaxAttempts: 3},
				{ID: "t2", Status: planio.TaskPending, MaxAttempts: 3},
			}},
		},
	}
	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, planio.SavePlan(plan, planPath))

	cfg := *DefaultConfig(dir)
	backend := &fakeBackend{handshakePath: cfg.HandshakePath(), status: planio.HandshakeSuspended, message: "need a decision"}
	exec := New(cfg, backend, nil, nil)

	result, err := exec.Run(context.Background(), planPath, RunOptions{SkipSmoke: true})
	require.NoError(t, err)

	// spec 4.1.7: a suspended task halts the plan rather than letting the
	// loop move on to the next independently runnable task.
	assert.True(t, result.Suspended)
	assert.Equal(t, "t1", result.SuspendedTaskID)
	assert.Equal(t, 1, backend.calls)

	reloaded, err := planio.LoadPlan(planPath)
	require.NoError(t, err)
	assert.Equal(t, planio.TaskSuspended, reloaded.FindTask("t1").Status)
	assert.Equal(t, planio.TaskPending, reloaded.FindTask("t2").Status)
}

func TestExecutorRunSingleTaskReturnsAfterOneTask(t *testing.T) {
	dir := t.TempDir()
	plan := &planio.Plan{
		Meta: planio.Meta{Name: "test-plan"},
		Sections: []planio.Section{
			{ID: "s1", Tasks: []planio.Task{
				{ID: "t1", Status: planio.TaskPending, MaxAttempts: 3},
				{ID: "t2", Status: planio.TaskPending, MaxAttempts: 3},
			}},
		},
	}
	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, planio.SavePlan(plan, planPath))

	cfg := *DefaultConfig(dir)
	backend := &fakeBackend{handshakePath: cfg.HandshakePath(), status: planio.HandshakeCompleted}
	exec := New(cfg, backend, nil, nil)

	result, err := exec.Run(context.Background(), planPath, RunOptions{SingleTask: true, SkipSmoke: true})
	require.NoError(t, err)
	assert.False(t, result.Completed)
	assert.Equal(t, 1, backend.calls)

	reloaded, err := planio.LoadPlan(planPath)
	require.NoError(t, err)
	assert.Equal(t, planio.TaskCompleted, reloaded.FindTask("t1").Status)
	assert.Equal(t, planio.TaskPending, reloaded.FindTask("t2").Status)
}
