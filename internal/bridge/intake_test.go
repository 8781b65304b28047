package bridge

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFiveWhysExtractsCompleteResult(t *testing.T) {
	text := "Why 1: users can't log in\n" +
		"Why 2: the session token expires early\n" +
		"Why 3: clock skew on the auth server\n" +
		"Why 4: NTP sync was disabled\n" +
		"Why 5: a config change disabled it during the last deploy\n\n" +
		"## Root Need\nUsers need sessions that last as long as advertised.\n\n" +
		"## Title\nFix session expiry\n\n" +
		"## Description\nRe-enable NTP sync on the auth server.\n"

	r := parseFiveWhys(text, ClassNewDefect)
	assert.True(t, r.complete())
	assert.Len(t, r.Whys, 5)
	assert.Equal(t, "Users need sessions that last as long as advertised.", r.RootNeed)
	assert.Equal(t, "Fix session expiry", r.Title)
}

func TestParseFiveWhysIncompleteResultIsNotComplete(t *testing.T) {
	text := "Why 1: users can't log in\nWhy 2: session expires\n"
	r := parseFiveWhys(text, ClassNewDefect)
	assert.False(t, r.complete())
	assert.Len(t, r.Whys, 2)
}

func initGitRepoForBridgeTest(t *testing.T, dir string) {
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

func TestIntakeSubmissionCreatesBacklogItemAndPostsSummary(t *testing.T) {
	transport := newFakeTransport()
	backend := &scriptedBackend{responses: []string{
		"Why 1: a\nWhy 2: b\nWhy 3: c\nWhy 4: d\nWhy 5: e\n\n## Root Need\nFaster checkout.\n\n## Title\nSpeed up checkout\n\n## Description\nReduce checkout latency.\n",
	}}
	b, cfg := newTestBridge(t, transport, backend)
	initGitRepoForBridgeTest(t, cfg.ProjectRoot)

	msg := Message{ChannelID: "C1", Text: "feature: checkout is slow", Ts: "1.1"}
	b.IntakeSubmission(t.Context(), msg, ClassNewFeature)

	entries, err := os.ReadDir(cfg.FeatureBacklogDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(cfg.FeatureBacklogDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Speed up checkout")
	assert.Contains(t, string(data), "## Status: Open")

	require.GreaterOrEqual(t, len(transport.posts), 2)
	assert.Contains(t, transport.posts[0].Text, "Analyzing")
}
