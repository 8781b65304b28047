package worktree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferencedPaths(t *testing.T) {
	desc := "Update internal/guard/circuit.go and add a test in internal/guard/circuit_test.go, see docs/notes.md"
	paths := ReferencedPaths(desc)
	assert.Contains(t, paths, "internal/guard/circuit.go")
	assert.Contains(t, paths, "internal/guard/circuit_test.go")
	assert.Contains(t, paths, "docs/notes.md")
}

func TestHasConflictDetectsOverlappingPaths(t *testing.T) {
	a := []string{"internal/guard/circuit.go"}
	b := []string{"internal/guard/circuit.go", "internal/model/escalation.go"}
	assert.True(t, HasConflict(a, nil, b, nil))
}

func TestHasConflictDetectsOverlappingResources(t *testing.T) {
	assert.True(t, HasConflict(nil, []string{"db-migration"}, nil, []string{"db-migration"}))
}

func TestHasConflictNoOverlap(t *testing.T) {
	a := []string{"internal/guard/circuit.go"}
	b := []string{"internal/model/escalation.go"}
	assert.False(t, HasConflict(a, nil, b, nil))
}

func TestIsCoordinationPath(t *testing.T) {
	assert.True(t, isCoordinationPath(".claude/plans/foo.yaml"))
	assert.True(t, isCoordinationPath(".claude/agent-claims"))
	assert.False(t, isCoordinationPath("internal/guard/circuit.go"))
}

func TestCopyFileCreatesDestDirs(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	dest := filepath.Join(tmp, "nested", "dest.txt")
	require.NoError(t, copyFile(src, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestDedupe(t *testing.T) {
	out := dedupe([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}
