package worktree

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Info describes one active worktree created for a parallel task (spec 4.1.3).
type Info struct {
	TaskID     string
	Path       string
	Branch     string
	BaseBranch string
	ForkPoint  string
}

// Manager creates and tears down one worktree per task in a parallel group,
// and merges their results back into the main checkout without ever running
// git merge, matching spec 4.1.3's combined-diff-and-copy protocol.
type Manager struct {
	repoDir string
	root    string // parent dir for worktree checkouts, relative to repoDir

	mu     sync.Mutex
	active map[string]*Info
}

// coordinationPrefixes are stripped from the merge-back diff so that
// per-worker claim/status files never leak into the main checkout
// (spec 4.1.3: "skipping coordination-file prefixes").
var coordinationPrefixes = []string{
	".claude/plans/",
	".claude/subagent-status/",
	".claude/agent-claims",
}

// NewManager builds a worktree manager rooted at repoDir, with worktree
// checkouts placed under repoDir/root (default ".ralph/worktrees").
func NewManager(repoDir, root string) *Manager {
	if root == "" {
		root = ".ralph/worktrees"
	}
	return &Manager{repoDir: repoDir, root: root, active: make(map[string]*Info)}
}

// IsGitRepo reports whether the manager's repo directory is a git worktree.
func (m *Manager) IsGitRepo() bool {
	return isGitRepo(m.repoDir)
}

// Create adds a worktree for taskID on branch parallel/<taskID>, deleting
// any stale branch of the same name left over from a previous crashed run.
func (m *Manager) Create(taskID string) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info, ok := m.active[taskID]; ok {
		return info, nil
	}

	branch := "parallel/" + taskID
	path := filepath.Join(m.repoDir, m.root, taskID)

	base, err := currentBranch(m.repoDir)
	if err != nil {
		return nil, err
	}
	if base == "HEAD" {
		return nil, fmt.Errorf("repository is in detached HEAD state, cannot start parallel group")
	}

	if branchExists(m.repoDir, branch) {
		_ = prune(m.repoDir)
		if err := branchDelete(m.repoDir, branch); err != nil {
			return nil, fmt.Errorf("delete stale branch %s: %w", branch, err)
		}
	}

	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if err := add(m.repoDir, path, branch, base); err != nil {
		return nil, err
	}

	fork, err := mergeBase(m.repoDir, branch, base)
	if err != nil {
		return nil, err
	}

	info := &Info{TaskID: taskID, Path: path, Branch: branch, BaseBranch: base, ForkPoint: fork}
	m.active[taskID] = info
	return info, nil
}

// CleanupStaleBranches prunes worktree admin data and deletes any
// parallel/* branch with no corresponding active worktree, run at the start
// of each parallel group per spec 4.1.3 ("Clean up stale branches, prune
// worktrees").
func (m *Manager) CleanupStaleBranches() error {
	if err := prune(m.repoDir); err != nil {
		return err
	}

	paths, err := list(m.repoDir)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(paths))
	for _, p := range paths {
		known[p] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for taskID, info := range m.active {
		if !known[info.Path] {
			delete(m.active, taskID)
		}
	}

	out, err := exec.Command("git", "-C", m.repoDir, "for-each-ref", "--format=%(refname:short)", "refs/heads/parallel/").Output()
	if err != nil {
		return err
	}
	for _, branch := range strings.Fields(string(out)) {
		if _, ok := m.active[strings.TrimPrefix(branch, "parallel/")]; !ok {
			_ = branchDelete(m.repoDir, branch)
		}
	}
	return nil
}

// Remove tears down the worktree and its branch for a single task.
func (m *Manager) Remove(taskID string) error {
	m.mu.Lock()
	info, ok := m.active[taskID]
	if ok {
		delete(m.active, taskID)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	if err := remove(m.repoDir, info.Path, true); err != nil {
		if err2 := os.RemoveAll(info.Path); err2 != nil {
			return fmt.Errorf("remove worktree dir: %w (git: %v)", err2, err)
		}
	}
	_ = prune(m.repoDir)

	if branchExists(m.repoDir, info.Branch) {
		if err := branchDelete(m.repoDir, info.Branch); err != nil {
			return fmt.Errorf("delete branch %s: %w", info.Branch, err)
		}
	}
	return nil
}

// RemoveAll tears down every active worktree in the group, collecting (not
// stopping on) individual errors.
func (m *Manager) RemoveAll() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.Remove(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func isCoordinationPath(path string) bool {
	for _, prefix := range coordinationPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// MergeBack computes each worktree's changed-file set since its fork point
// and applies added/modified files into the main checkout, removing deleted
// files, per spec 4.1.3's "do not use git merge" protocol. It returns the
// list of paths touched across the whole group, for the combined commit.
func (m *Manager) MergeBack(taskIDs []string) ([]string, error) {
	var touched []string

	for _, taskID := range taskIDs {
		m.mu.Lock()
		info, ok := m.active[taskID]
		m.mu.Unlock()
		if !ok {
			continue
		}

		entries, err := diffNameStatus(info.Path, info.ForkPoint, info.Branch)
		if err != nil {
			return touched, fmt.Errorf("diff for task %s: %w", taskID, err)
		}

		for _, e := range entries {
			if isCoordinationPath(e.Path) || (e.OldPath != "" && isCoordinationPath(e.OldPath)) {
				continue
			}

			dest := filepath.Join(m.repoDir, e.Path)

			switch {
			case e.Status == "D":
				if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
					return touched, fmt.Errorf("unlink %s: %w", e.Path, err)
				}
				touched = append(touched, e.Path)
			case e.Status == "R":
				oldDest := filepath.Join(m.repoDir, e.OldPath)
				if err := os.Remove(oldDest); err != nil && !os.IsNotExist(err) {
					return touched, fmt.Errorf("unlink renamed-from %s: %w", e.OldPath, err)
				}
				if err := copyFile(filepath.Join(info.Path, e.Path), dest); err != nil {
					return touched, err
				}
				touched = append(touched, e.OldPath, e.Path)
			default: // A, M
				if err := copyFile(filepath.Join(info.Path, e.Path), dest); err != nil {
					return touched, err
				}
				touched = append(touched, e.Path)
			}
		}
	}

	return dedupe(touched), nil
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dest dir for %s: %w", dest, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dest, err)
	}
	return nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// sourcePathPattern matches common source-tree file references in free-form
// task descriptions, used by the conflict check (spec 4.1.3).
var sourcePathPattern = regexp.MustCompile(`\b[\w./-]+\.(go|ts|tsx|js|jsx|py|rb|java|md|yaml|yml|json)\b`)

// ReferencedPaths extracts file paths mentioned in a task description.
func ReferencedPaths(description string) []string {
	matches := sourcePathPattern.FindAllString(description, -1)
	return dedupe(matches)
}

// HasConflict reports whether two tasks' referenced paths or declared
// exclusive_resources overlap, forcing the group to run sequentially
// (spec 4.1.3: "Any pairwise overlap forces the group to run sequentially").
func HasConflict(aPaths, aResources, bPaths, bResources []string) bool {
	return overlaps(aPaths, bPaths) || overlaps(aResources, bResources)
}

func overlaps(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, p := range a {
		set[p] = true
	}
	for _, p := range b {
		if set[p] {
			return true
		}
	}
	return false
}
