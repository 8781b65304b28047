package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollSuspensionsPostsUnpostedMarker(t *testing.T) {
	transport := newFakeTransport()
	b, cfg := newTestBridge(t, transport, &scriptedBackend{})
	b.channels["questions"] = "C_Q"

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.ProjectRoot, ".claude", "suspended"), 0o755))
	markerPath := filepath.Join(cfg.ProjectRoot, ".claude", "suspended", "0001-thing.json")
	marker := &planio.SuspensionMarker{Slug: "0001-thing", Question: "which database should we use?"}
	require.NoError(t, planio.SaveSuspensionMarker(markerPath, marker))

	b.pollSuspensionsOnce(context.Background())

	require.Len(t, transport.posts, 1)
	assert.Equal(t, "C_Q", transport.posts[0].ChannelID)
	assert.Equal(t, "which database should we use?", transport.posts[0].Text)

	reloaded, err := planio.LoadSuspensionMarker(markerPath)
	require.NoError(t, err)
	assert.NotEmpty(t, reloaded.ThreadTS)
	assert.Equal(t, "C_Q", reloaded.ChannelID)
}

func TestPollSuspensionsSkipsAlreadyPostedMarker(t *testing.T) {
	transport := newFakeTransport()
	b, cfg := newTestBridge(t, transport, &scriptedBackend{})

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.ProjectRoot, ".claude", "suspended"), 0o755))
	markerPath := filepath.Join(cfg.ProjectRoot, ".claude", "suspended", "0002-thing.json")
	marker := &planio.SuspensionMarker{Slug: "0002-thing", Question: "ok?", ThreadTS: "ts-existing"}
	require.NoError(t, planio.SaveSuspensionMarker(markerPath, marker))

	b.pollSuspensionsOnce(context.Background())

	assert.Empty(t, transport.posts)
}

func TestRouteSuspensionReplyWritesAnswerAndClearsThread(t *testing.T) {
	transport := newFakeTransport()
	b, cfg := newTestBridge(t, transport, &scriptedBackend{})

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.ProjectRoot, ".claude", "suspended"), 0o755))
	markerPath := filepath.Join(cfg.ProjectRoot, ".claude", "suspended", "0003-thing.json")
	marker := &planio.SuspensionMarker{Slug: "0003-thing", Question: "ok?", ChannelID: "C_Q", ThreadTS: "ts-1"}
	require.NoError(t, planio.SaveSuspensionMarker(markerPath, marker))
	b.threads["0003-thing"] = "ts-1"

	b.routeSuspensionReply(context.Background(), Message{ChannelID: "C_Q", ThreadTS: "ts-1", Text: "use postgres"})

	reloaded, err := planio.LoadSuspensionMarker(markerPath)
	require.NoError(t, err)
	assert.Equal(t, "use postgres", reloaded.Answer)
	assert.True(t, reloaded.IsAnswered())

	b.mu.Lock()
	_, stillTracked := b.threads["0003-thing"]
	b.mu.Unlock()
	assert.False(t, stillTracked)
}
