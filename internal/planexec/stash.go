package planexec

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// stashExcludingPlans stashes uncommitted changes in the working tree,
// excluding the plan directory, per spec 5: "scar tissue: several
// generations of git-stash interactions produced conflicts until two fixes
// landed — exclude .claude/plans/ from stash pushes via pathspec". Returns
// false if there was nothing to stash.
func stashExcludingPlans(repoDir string) (bool, error) {
	args := []string{"stash", "push", "-u", "-m", "ralph-orchestrator-task",
		"--", ".", ":(exclude).claude/plans"}
	cmd := exec.Command("git", args...)
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return false, fmt.Errorf("git stash push: %w\noutput: %s", err, output)
	}
	if strings.Contains(output, "No local changes to save") {
		return false, nil
	}
	return true, nil
}

// popStashDiscardingHandshake discards the handshake file before popping so
// it never participates in the stash merge (spec 5: "discarded before stash
// pop to avoid merge conflicts"), then pops. On conflict it runs
// `git reset --merge` followed by a checkout of HEAD, the fix spec 5
// documents for the second generation of stash conflicts.
func popStashDiscardingHandshake(repoDir, handshakePath string) error {
	if err := os.Remove(handshakePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard handshake before stash pop: %w", err)
	}

	cmd := exec.Command("git", "stash", "pop")
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	output := strings.TrimSpace(string(out))
	if !strings.Contains(strings.ToLower(output), "conflict") {
		return fmt.Errorf("git stash pop: %w\noutput: %s", err, output)
	}

	reset := exec.Command("git", "reset", "--merge")
	reset.Dir = repoDir
	if out, err := reset.CombinedOutput(); err != nil {
		return fmt.Errorf("git reset --merge after stash pop conflict: %w\noutput: %s", err, strings.TrimSpace(string(out)))
	}

	checkout := exec.Command("git", "checkout", "HEAD", "--", ".")
	checkout.Dir = repoDir
	if out, err := checkout.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout HEAD after stash pop conflict: %w\noutput: %s", err, strings.TrimSpace(string(out)))
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// gitRun runs a git subcommand rooted at dir, the same
// exec.Command("git", ...)+CombinedOutput() idiom as the rest of this file
// and internal/worktree.
func gitRun(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %v: %w: %s", args, err, strings.TrimSpace(string(out)))
	}
	return nil
}
