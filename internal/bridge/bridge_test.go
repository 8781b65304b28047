package bridge

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records posted messages and serves canned responses,
// standing in for the real Slack Web API during tests.
type fakeTransport struct {
	mu       sync.Mutex
	posts    []postedMessage
	channels map[string]string
	history  map[string][]Message
}

type postedMessage struct {
	ChannelID string
	Text      string
	ThreadTS  string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{channels: map[string]string{}, history: map[string][]Message{}}
}

func (f *fakeTransport) PostMessage(ctx context.Context, channelID, text, threadTS string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, postedMessage{ChannelID: channelID, Text: text, ThreadTS: threadTS})
	return fmt.Sprintf("ts-%d", len(f.posts)), nil
}

func (f *fakeTransport) ChannelsByPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	return f.channels, nil
}

func (f *fakeTransport) History(ctx context.Context, channelID string, oldest string, limit int) ([]Message, error) {
	return f.history[channelID], nil
}

func (f *fakeTransport) Listen(ctx context.Context, appToken string, handler func(Message)) error {
	<-ctx.Done()
	return nil
}

// scriptedBackend returns canned stream-json results in call order, driving
// the bridge's own one-shot LLM calls (5-Whys, Q&A) without a real agent CLI.
type scriptedBackend struct {
	responses []string
	calls     int
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Execute(ctx context.Context, opts llm.ExecuteOptions) (io.ReadCloser, error) {
	resp := ""
	if b.calls < len(b.responses) {
		resp = b.responses[b.calls]
	}
	b.calls++
	line := fmt.Sprintf(`{"type":"result","result":%q,"total_cost_usd":0.01,"num_turns":1}`, resp)
	return io.NopCloser(strings.NewReader(line + "\n")), nil
}

func newTestBridge(t *testing.T, transport Transport, backend llm.Backend) (*Bridge, *pipeline.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := pipeline.DefaultConfig(dir)
	slackCfg := DefaultConfig()
	slackCfg.Enabled = true
	slackCfg.ChannelPrefix = "ralph"
	b := New(cfg, slackCfg, backend, nil, transport, Identity{Names: []string{"ralph"}})
	return b, cfg
}

func TestNotifyCompletionPostsToReportsChannel(t *testing.T) {
	transport := newFakeTransport()
	b, _ := newTestBridge(t, transport, &scriptedBackend{})
	b.channels["reports"] = "C_REPORTS"

	b.NotifyCompletion("feature X is done")

	require.Len(t, transport.posts, 1)
	assert.Equal(t, "C_REPORTS", transport.posts[0].ChannelID)
	assert.Contains(t, transport.posts[0].Text, "feature X is done")
}

func TestNotifyInfoSkippedWhenDisabled(t *testing.T) {
	transport := newFakeTransport()
	b, _ := newTestBridge(t, transport, &scriptedBackend{})
	b.channels["notifications"] = "C_NOTIF"

	b.NotifyInfo("fyi")

	assert.Empty(t, transport.posts)
}

func TestAnswerQuestionUsesRollingHistory(t *testing.T) {
	transport := newFakeTransport()
	backend := &scriptedBackend{responses: []string{"42 tasks remain"}}
	b, _ := newTestBridge(t, transport, backend)

	b.AnswerQuestion(context.Background(), Message{ChannelID: "C1", Text: "how many tasks are left?", Ts: "100.1"})

	require.Len(t, transport.posts, 1)
	assert.Equal(t, "42 tasks remain", transport.posts[0].Text)
	assert.Len(t, b.history, 1)
	assert.Equal(t, "42 tasks remain", b.history[0].Answer)
}

func TestAnswerQuestionTrimsHistoryToWindow(t *testing.T) {
	transport := newFakeTransport()
	backend := &scriptedBackend{responses: []string{"a1", "a2", "a3", "a4"}}
	b, _ := newTestBridge(t, transport, backend)
	b.slack.ConversationHistory.MaxTurns = 2

	for i := 0; i < 4; i++ {
		b.AnswerQuestion(context.Background(), Message{ChannelID: "C1", Text: fmt.Sprintf("q%d?", i), Ts: fmt.Sprintf("%d", i)})
	}

	assert.Len(t, b.history, 2)
	assert.Equal(t, "a3", b.history[0].Answer)
	assert.Equal(t, "a4", b.history[1].Answer)
}
