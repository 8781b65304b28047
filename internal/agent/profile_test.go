package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfileParsesFrontmatter(t *testing.T) {
	dir := t.TempDir()
	content := "---\nname: coder\ndescription: writes code\nmodel: sonnet\n---\nYou are the coder agent.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coder.md"), []byte(content), 0o644))

	p, err := LoadProfile(dir, RoleCoder)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "coder", p.Frontmatter.Name)
	assert.Equal(t, "sonnet", p.Frontmatter.Model)
	assert.Contains(t, p.Body, "You are the coder agent.")
}

func TestLoadProfileMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	p, err := LoadProfile(dir, RoleCoder)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadProfileWithoutFrontmatter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coder.md"), []byte("Just a body, no frontmatter.\n"), 0o644))

	p, err := LoadProfile(dir, RoleCoder)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Just a body, no frontmatter.\n", p.Body)
}
