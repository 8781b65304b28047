package planexec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/agent"
	"github.com/daydemir/ralph-orchestrator/internal/claims"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/daydemir/ralph-orchestrator/internal/worktree"
	"golang.org/x/sync/errgroup"
)

// collectParallelGroup gathers every other runnable task sharing t's
// parallel_group (spec 4.1.3). A task with no parallel_group always runs
// alone.
func collectParallelGroup(plan *planio.Plan, t *planio.Task) []*planio.Task {
	if t.ParallelGroup == "" {
		return []*planio.Task{t}
	}
	var group []*planio.Task
	for _, other := range plan.AllTasks() {
		if other.ParallelGroup != t.ParallelGroup {
			continue
		}
		if other.Attempts > other.MaxAttempts {
			continue
		}
		if other.Status != planio.TaskPending && other.Status != planio.TaskInProgress {
			continue
		}
		if !depsCompleted(plan, other) {
			continue
		}
		group = append(group, other)
	}
	return group
}

// groupHasConflict reports whether any pair in the group references
// overlapping paths or exclusive resources, forcing the group to fall back
// to sequential execution (spec 4.1.3, spec 8 boundary behaviour).
func groupHasConflict(group []*planio.Task) bool {
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			aPaths := worktree.ReferencedPaths(group[i].Description)
			bPaths := worktree.ReferencedPaths(group[j].Description)
			if worktree.HasConflict(aPaths, group[i].ExclusiveResources, bPaths, group[j].ExclusiveResources) {
				return true
			}
		}
	}
	return false
}

// runParallelGroup executes every task in group in its own worktree
// concurrently, then merges results back via combined diff-and-copy
// (spec 4.1.3). Falls back to running the tasks sequentially in place if
// the project root is not a git repository.
func (e *Executor) runParallelGroup(ctx context.Context, plan *planio.Plan, group []*planio.Task) error {
	wt := worktree.NewManager(e.cfg.ProjectRoot, e.cfg.WorktreeRoot)
	if !wt.IsGitRepo() {
		for _, t := range group {
			if _, err := e.executeTaskWith(ctx, plan, t, e.cfg.ProjectRoot, nil); err != nil {
				return err
			}
		}
		return nil
	}

	collector := claims.NewCollector(e.cfg.ClaimsPath(), e.cfg.StatusPath)
	if _, err := collector.CollectStale(time.Now()); err != nil {
		return fmt.Errorf("collect stale claims: %w", err)
	}
	if err := wt.CleanupStaleBranches(); err != nil {
		return fmt.Errorf("cleanup stale worktrees: %w", err)
	}

	var taskIDs []string
	infos := make(map[string]*worktree.Info, len(group))
	for _, t := range group {
		info, err := wt.Create(t.ID)
		if err != nil {
			return fmt.Errorf("create worktree for %s: %w", t.ID, err)
		}
		taskIDs = append(taskIDs, t.ID)
		infos[t.ID] = info

		workerID := "worker-" + t.ID
		_ = collector.Claim(workerID, worktree.ReferencedPaths(t.Description))
		_ = claims.Heartbeat(e.cfg.StatusPath(workerID), workerID, t.ID, time.Now(), false)
	}

	g, gctx := errgroup.WithContext(ctx)

	var rlMu sync.Mutex
	var rateLimitResets []time.Time

	for _, t := range group {
		info := infos[t.ID]
		workerID := "worker-" + t.ID
		siblings := siblingIDs(group, t.ID)

		g.Go(func() error {
			defer func() {
				_ = claims.Heartbeat(e.cfg.StatusPath(workerID), workerID, t.ID, time.Now(), true)
				_ = collector.Release(workerID)
			}()
			sub := &agent.SubagentContext{WorkerID: workerID, WorktreePath: info.Path, SiblingTasks: siblings}
			_, err := e.executeTaskWith(gctx, plan, t, info.Path, sub)

			var rlErr *rateLimitError
			if errors.As(err, &rlErr) {
				rlMu.Lock()
				rateLimitResets = append(rateLimitResets, rlErr.resetAt)
				rlMu.Unlock()
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		_ = wt.RemoveAll()
		return err
	}

	if len(rateLimitResets) > 0 {
		return e.retryRateLimitedGroup(ctx, plan, group, wt, rateLimitResets)
	}

	touched, err := wt.MergeBack(taskIDs)
	if err != nil {
		return fmt.Errorf("merge back parallel group: %w", err)
	}
	e.display.Info("parallel group", fmt.Sprintf("merged %d files from %d tasks", len(touched), len(taskIDs)))

	if len(touched) > 0 {
		if err := e.commitParallelGroup(touched, taskIDs); err != nil {
			e.display.Warning(fmt.Sprintf("commit parallel group: %v", err))
		}
	}

	if err := wt.RemoveAll(); err != nil {
		e.display.Warning(fmt.Sprintf("remove worktrees: %v", err))
	}

	e.planMu.Lock()
	err = planio.SavePlan(plan, "")
	e.planMu.Unlock()
	return err
}

// retryRateLimitedGroup implements spec 4.1.3's whole-group rate-limit
// policy: if any member of the group was rate-limited, every member
// (including ones that already completed this round) resets to pending with
// its attempt decremented, and the whole group is retried together after
// waiting until the latest reset time across the group plus 30 seconds.
func (e *Executor) retryRateLimitedGroup(ctx context.Context, plan *planio.Plan, group []*planio.Task, wt *worktree.Manager, resets []time.Time) error {
	latest := resets[0]
	for _, r := range resets[1:] {
		if r.After(latest) {
			latest = r
		}
	}

	e.planMu.Lock()
	for _, t := range group {
		if t.Attempts > 0 {
			t.Attempts--
		}
		t.Status = planio.TaskPending
	}
	err := planio.SavePlan(plan, "")
	e.planMu.Unlock()
	if err != nil {
		return err
	}

	if err := wt.RemoveAll(); err != nil {
		e.display.Warning(fmt.Sprintf("remove worktrees before group retry: %v", err))
	}

	wait := time.Until(latest.Add(30 * time.Second))
	if wait < 0 {
		wait = 0
	}
	msg := fmt.Sprintf("parallel group rate-limited, resuming at %s", latest.Add(30*time.Second).Format(time.RFC3339))
	e.display.Warning(msg)
	e.notifier.NotifyInfo(msg)
	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return ctx.Err()
	}

	return e.runParallelGroup(ctx, plan, group)
}

// commitParallelGroup produces the single combined commit spec 4.1.3
// requires for a merged-back parallel group, scoped to exactly the files
// MergeBack touched.
func (e *Executor) commitParallelGroup(touched []string, taskIDs []string) error {
	args := append([]string{"add"}, touched...)
	if err := gitRun(e.cfg.ProjectRoot, args...); err != nil {
		return err
	}
	msg := fmt.Sprintf("parallel group: %s", joinIDs(taskIDs))
	return gitRun(e.cfg.ProjectRoot, "commit", "-m", msg)
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

func siblingIDs(group []*planio.Task, exclude string) []string {
	var out []string
	for _, t := range group {
		if t.ID != exclude {
			out = append(out, t.ID)
		}
	}
	return out
}
