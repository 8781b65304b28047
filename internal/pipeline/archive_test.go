package pipeline

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initGitRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
}

func TestArchiveItemMovesAndCommits(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	cfg := DefaultConfig(dir)

	itemPath := filepath.Join(cfg.FeatureBacklogDir, "0001-thing.md")
	writeItemFile(t, cfg.FeatureBacklogDir, "0001-thing.md", "## Status: Open\n")

	cmd := exec.Command("git", "add", "-A")
	cmd.Dir = dir
	_, err := cmd.CombinedOutput()
	require.NoError(t, err)
	commitCmd := exec.Command("git", "commit", "-m", "add item")
	commitCmd.Dir = dir
	_, err = commitCmd.CombinedOutput()
	require.NoError(t, err)

	item := &planio.Item{Type: planio.ItemFeature, Path: itemPath, Slug: "0001-thing"}
	require.NoError(t, archiveItem(cfg, item))

	dest := filepath.Join(cfg.CompletedDir, "features", "0001-thing.md")
	assert.True(t, fileExists(dest))
	assert.False(t, fileExists(itemPath))
}

func TestArchiveItemIsIdempotentWhenDestinationExists(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)

	destDir := filepath.Join(cfg.CompletedDir, "defects")
	require.NoError(t, os.MkdirAll(destDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "0001-bug.md"), []byte("archived"), 0o644))

	orphanPath := filepath.Join(cfg.DefectBacklogDir, "0001-bug.md")
	writeItemFile(t, cfg.DefectBacklogDir, "0001-bug.md", "## Status: Open\n")

	item := &planio.Item{Type: planio.ItemDefect, Path: orphanPath, Slug: "0001-bug"}
	require.NoError(t, archiveItem(cfg, item))
	assert.False(t, fileExists(orphanPath))
}

func TestExtractCompletionSummary(t *testing.T) {
	body := `## Status: Completed

## Root Cause
The cache was never invalidated on write.

## Root Need
Users need to see fresh data immediately after an edit.

## Summary
Fixed cache invalidation on write path.

## Verification Log
- [PASS] cache invalidated correctly, verified in store_test.go:42
`
	s := extractCompletionSummary(body)
	assert.Equal(t, "The cache was never invalidated on write.", s.RootCause)
	assert.Equal(t, "Users need to see fresh data immediately after an edit.", s.RootNeed)
	assert.Equal(t, "Fixed cache invalidation on write path.", s.Summary)
	assert.Contains(t, s.LastFixDetail, "store_test.go:42")
}
