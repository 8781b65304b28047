// Package worktree manages git worktree isolation for parallel task
// execution (spec 4.1.3), adapted from jaakkos-stringwork's
// internal/worktree package: the same add/remove/list/prune and
// branch-lifecycle primitives, but merged back via a combined diff/copy
// pass instead of stringwork's one-worktree-per-worker model that never
// merges back at all.
package worktree

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

func add(repoDir, worktreePath, branch, baseBranch string) error {
	args := []string{"worktree", "add", "-b", branch, worktreePath}
	if baseBranch != "" {
		args = append(args, baseBranch)
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git worktree add: %w\noutput: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func remove(repoDir, worktreePath string, force bool) error {
	args := []string{"worktree", "remove", worktreePath}
	if force {
		args = append(args, "--force")
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git worktree remove: %w\noutput: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func list(repoDir string) ([]string, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git worktree list: %w\noutput: %s", err, strings.TrimSpace(string(out)))
	}

	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			paths = append(paths, strings.TrimPrefix(line, "worktree "))
		}
	}
	return paths, nil
}

func prune(repoDir string) error {
	cmd := exec.Command("git", "worktree", "prune")
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git worktree prune: %w\noutput: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func branchExists(repoDir, branch string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "refs/heads/"+branch)
	cmd.Dir = repoDir
	return cmd.Run() == nil
}

func branchDelete(repoDir, branch string) error {
	cmd := exec.Command("git", "branch", "-D", branch)
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git branch -D %s: %w\noutput: %s", branch, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func isGitRepo(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

func currentBranch(repoDir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git current branch: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func mergeBase(repoDir, branch, baseBranch string) (string, error) {
	cmd := exec.Command("git", "merge-base", baseBranch, branch)
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git merge-base: %w\noutput: %s", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// DiffEntry is one line of `git diff --name-status`.
type DiffEntry struct {
	Status string // A, M, D, or R100-style rename
	Path   string
	OldPath string // set only for renames
}

func diffNameStatus(repoDir, from, to string) ([]DiffEntry, error) {
	cmd := exec.Command("git", "diff", "--name-status", from+".."+to)
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git diff: %w\noutput: %s", err, strings.TrimSpace(string(out)))
	}

	var entries []DiffEntry
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		status := fields[0]
		switch {
		case strings.HasPrefix(status, "R"):
			if len(fields) < 3 {
				continue
			}
			entries = append(entries, DiffEntry{Status: "R", OldPath: fields[1], Path: fields[2]})
		default:
			if len(fields) < 2 {
				continue
			}
			entries = append(entries, DiffEntry{Status: status, Path: fields[1]})
		}
	}
	return entries, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
