package planexec

import "github.com/daydemir/ralph-orchestrator/internal/planio"

// findNextTaskFrom selects the first task in plan order whose status is
// pending or in_progress, whose dependencies are all completed, and which
// has not exceeded max_attempts (spec 4.1.2 step 3). fromIdx, when >= 0,
// skips every task before that index — used once to honor
// --resume-from-task-id.
func findNextTaskFrom(plan *planio.Plan, fromIdx int) *planio.Task {
	for i, t := range plan.AllTasks() {
		if fromIdx >= 0 && i < fromIdx {
			continue
		}
		if t.Attempts > t.MaxAttempts {
			continue
		}
		if t.Status != planio.TaskPending && t.Status != planio.TaskInProgress {
			continue
		}
		if !depsCompleted(plan, t) {
			continue
		}
		return t
	}
	return nil
}

func depsCompleted(plan *planio.Plan, t *planio.Task) bool {
	for _, dep := range t.DependsOn {
		d := plan.FindTask(dep)
		if d == nil || d.Status != planio.TaskCompleted {
			return false
		}
	}
	return true
}

// detectDeadlock implements spec 4.1.11: walk every non-terminal task's
// depends_on; a dependency that is failed/suspended, or itself transitively
// blocked, marks the task blocked. The plan is deadlocked only when every
// non-terminal task is blocked. Runs to a fixpoint so transitive chains
// (A fails, B depends on A, C depends on B) are all flagged, matching
// spec 8's boundary scenario.
func detectDeadlock(plan *planio.Plan) (deadlocked bool, blockedBy map[string][]string) {
	nonTerminal := make(map[string]*planio.Task)
	for _, t := range plan.AllTasks() {
		if !t.Status.IsTerminal() {
			nonTerminal[t.ID] = t
		}
	}
	if len(nonTerminal) == 0 {
		return false, nil
	}

	blockedBy = make(map[string][]string)
	changed := true
	for changed {
		changed = false
		for id, t := range nonTerminal {
			if _, already := blockedBy[id]; already {
				continue
			}
			var blockers []string
			for _, dep := range t.DependsOn {
				d := plan.FindTask(dep)
				if d == nil {
					continue
				}
				if d.Status == planio.TaskFailed || d.Status == planio.TaskSuspended {
					blockers = append(blockers, dep)
					continue
				}
				if _, isBlocked := blockedBy[dep]; isBlocked {
					blockers = append(blockers, dep)
				}
			}
			if len(blockers) > 0 {
				blockedBy[id] = blockers
				changed = true
			}
		}
	}

	if len(blockedBy) == len(nonTerminal) {
		return true, blockedBy
	}
	return false, nil
}
