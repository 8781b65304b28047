package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloaderDetectsFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.go")
	require.NoError(t, os.WriteFile(path, []byte("package a"), 0o644))

	r := NewReloader([]string{path}, 20*time.Millisecond)
	assert.False(t, r.RestartPending())

	r.Start()
	defer r.Stop()

	require.NoError(t, os.WriteFile(path, []byte("package a // changed"), 0o644))

	assert.Eventually(t, r.RestartPending, time.Second, 5*time.Millisecond)
}

func TestReloaderNoChangeNoPending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.go")
	require.NoError(t, os.WriteFile(path, []byte("package a"), 0o644))

	r := NewReloader([]string{path}, 20*time.Millisecond)
	r.Start()
	time.Sleep(80 * time.Millisecond)
	r.Stop()

	assert.False(t, r.RestartPending())
}
