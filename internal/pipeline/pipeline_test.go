package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/planexec"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend returns canned stream-json text in call order, used to
// drive the pipeline's one-shot sessions (plan creation, verification)
// without a real agent CLI.
type scriptedBackend struct {
	responses []string
	calls     int
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Execute(ctx context.Context, opts llm.ExecuteOptions) (io.ReadCloser, error) {
	resp := ""
	if b.calls < len(b.responses) {
		resp = b.responses[b.calls]
	}
	b.calls++
	line := fmt.Sprintf(`{"type":"result","result":%q,"total_cost_usd":0.01,"num_turns":1}`, resp)
	return io.NopCloser(strings.NewReader(line + "\n")), nil
}

type fakePlanRunner struct {
	planPath string
	taskID   string
}

func (f *fakePlanRunner) Run(ctx context.Context, planPath string, opts planexec.RunOptions) (*planexec.RunResult, error) {
	plan, err := planio.LoadPlan(planPath)
	if err != nil {
		return nil, err
	}
	for _, t := range plan.AllTasks() {
		t.Status = planio.TaskCompleted
	}
	if err := planio.SavePlan(plan, planPath); err != nil {
		return nil, err
	}
	return &planexec.RunResult{PlanPath: planPath, Completed: true, ExitCode: 0}, nil
}

func writeSimplePlan(t *testing.T, path string) {
	t.Helper()
	plan := &planio.Plan{
		Meta:     planio.Meta{Name: "item-plan"},
		Sections: []planio.Section{{ID: "s1", Tasks: []planio.Task{{ID: "t1", Status: planio.TaskPending, MaxAttempts: 3}}}},
	}
	require.NoError(t, planio.SavePlan(plan, path))
}

func TestProcessItemCompletesOnPassVerdict(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	cfg := DefaultConfig(dir)
	require.NoError(t, os.MkdirAll(cfg.FeatureBacklogDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.PlansDir, 0o755))

	itemPath := filepath.Join(cfg.FeatureBacklogDir, "0001-thing.md")
	require.NoError(t, os.WriteFile(itemPath, []byte("## Status: Open\n\nAdd a thing.\n"), 0o644))
	commitAll(t, dir)
	item, err := planio.ParseItem(itemPath, planio.ItemFeature)
	require.NoError(t, err)

	// The fake plan-creation session doesn't actually write a plan file (it
	// has no tool-use side effects), so pre-seed one at the path ProcessItem
	// expects, mirroring what a real planner agent would have written.
	writeSimplePlan(t, planPathForItem(cfg, item))

	backend := &scriptedBackend{responses: []string{
		"design written",
		"**Verdict: PASS**\n**Findings:**\n- [PASS] looks good, file.go:1",
	}}
	cfg.Executor = &fakePlanRunner{}

	outcome, err := ProcessItem(context.Background(), cfg, backend, planexec.NoopNotifier{}, item)
	require.NoError(t, err)
	assert.Equal(t, ItemCompleted, outcome)

	dest := filepath.Join(cfg.CompletedDir, "features", "0001-thing.md")
	assert.True(t, fileExists(dest))
}

func TestProcessItemArchivesAsFailedAfterCycleExhaustion(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	cfg := DefaultConfig(dir)
	cfg.MaxVerificationCycles = 1
	require.NoError(t, os.MkdirAll(cfg.FeatureBacklogDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.PlansDir, 0o755))

	itemPath := filepath.Join(cfg.FeatureBacklogDir, "0001-thing.md")
	require.NoError(t, os.WriteFile(itemPath, []byte("## Status: Open\n\nAdd a thing.\n"), 0o644))
	commitAll(t, dir)
	item, err := planio.ParseItem(itemPath, planio.ItemFeature)
	require.NoError(t, err)

	writeSimplePlan(t, planPathForItem(cfg, item))

	backend := &scriptedBackend{responses: []string{
		"design written",
		"**Verdict: FAIL**\n**Findings:**\n- [FAIL] missing the thing, file.go:1",
	}}
	cfg.Executor = &fakePlanRunner{}

	outcome, err := ProcessItem(context.Background(), cfg, backend, planexec.NoopNotifier{}, item)
	require.NoError(t, err)
	assert.Equal(t, ItemFailed, outcome)

	dest := filepath.Join(cfg.CompletedDir, "features", "0001-thing.md")
	assert.True(t, fileExists(dest))
	data, _ := os.ReadFile(dest)
	assert.Contains(t, string(data), "Archived (verification failed)")
}

func TestPipelineRunOnceProcessesSingleItemAndExits(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	cfg := DefaultConfig(dir)

	require.NoError(t, os.MkdirAll(cfg.FeatureBacklogDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.PlansDir, 0o755))
	itemPath := filepath.Join(cfg.FeatureBacklogDir, "0001-thing.md")
	require.NoError(t, os.WriteFile(itemPath, []byte("## Status: Open\n\nAdd a thing.\n"), 0o644))

	commitAll(t, dir)

	item, err := planio.ParseItem(itemPath, planio.ItemFeature)
	require.NoError(t, err)
	writeSimplePlan(t, planPathForItem(cfg, item))

	cfg.Executor = &fakePlanRunner{}
	backend := &scriptedBackend{responses: []string{
		"design written",
		"**Verdict: PASS**\n**Findings:**\n- [PASS] ok, file.go:1",
	}}

	pl := New(cfg, backend, nil, nil)
	err = pl.Run(context.Background(), RunOptions{Once: true})
	require.NoError(t, err)

	dest := filepath.Join(cfg.CompletedDir, "features", "0001-thing.md")
	assert.True(t, fileExists(dest))
	assert.False(t, fileExists(cfg.PIDPath()))
}

func commitAll(t *testing.T, dir string) {
	t.Helper()
	cmd := exec.Command("git", "add", "-A")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	cmd = exec.Command("git", "commit", "-m", "seed")
	cmd.Dir = dir
	out, err = cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}
