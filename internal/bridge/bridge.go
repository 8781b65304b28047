package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/display"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/pipeline"
)

// Bridge wires the chat transport, identity/addressing filter,
// classification table, 5-Whys intake, rolling Q&A history, and suspension
// routing into the single daemon-thread inbound loop of spec.md §4.3.1.
// Grounded on jaakkos-stringwork's mutex-guarded worktree.Manager for the
// concurrency discipline (shared state behind one sync.Mutex) and the
// teacher's lack of a blocking call anywhere on the Executor's hot path.
type Bridge struct {
	cfg       *pipeline.Config
	slack     *Config
	transport Transport
	claude    llm.Backend
	display   *display.Display
	identity  Identity

	mu       sync.Mutex
	channels map[string]string // role -> channel ID
	history  []qaTurn
	threads  map[string]string // item slug -> thread_ts (suspension routing)
	lastRead string
}

// New builds a Bridge. transport may be nil to use SlackTransport bound to
// slackCfg.BotToken; tests substitute a fake Transport instead.
func New(cfg *pipeline.Config, slackCfg *Config, claude llm.Backend, disp *display.Display, transport Transport, identity Identity) *Bridge {
	if transport == nil {
		transport = NewSlackTransport(slackCfg.BotToken)
	}
	if disp == nil {
		disp = display.New()
	}
	return &Bridge{
		cfg:       cfg,
		slack:     slackCfg,
		transport: transport,
		claude:    claude,
		display:   disp,
		identity:  identity,
		channels:  make(map[string]string),
		threads:   make(map[string]string),
	}
}

// Run discovers channels and starts the inbound loop; it never blocks the
// caller's own control loop because callers are expected to invoke it in
// its own goroutine (spec.md §5: "daemon threads for Slack polling... that
// never block the main loops").
func (b *Bridge) Run(ctx context.Context) error {
	if !b.slack.Enabled {
		return nil
	}

	channels, err := b.transport.ChannelsByPrefix(ctx, b.slack.ChannelPrefix)
	if err != nil {
		return fmt.Errorf("discover slack channels: %w", err)
	}
	b.mu.Lock()
	for name, id := range channels {
		if role, ok := RoleForChannel(name, b.slack.ChannelPrefix); ok {
			b.channels[role] = id
		}
	}
	b.mu.Unlock()

	go b.pollSuspensions(ctx)

	if b.slack.AppToken != "" {
		return b.runSocketMode(ctx)
	}
	return b.runPolling(ctx)
}

func (b *Bridge) runSocketMode(ctx context.Context) error {
	wsURL, err := OpenSocketURL(ctx, b.slack.AppToken)
	if err != nil {
		return fmt.Errorf("open socket mode url: %w", err)
	}
	return b.transport.Listen(ctx, wsURL, func(msg Message) {
		b.handle(ctx, msg)
	})
}

func (b *Bridge) runPolling(ctx context.Context) error {
	interval := b.slack.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.pollOnce(ctx)
		}
	}
}

func (b *Bridge) pollOnce(ctx context.Context) {
	b.mu.Lock()
	channels := make([]string, 0, len(b.channels))
	for _, id := range b.channels {
		channels = append(channels, id)
	}
	lastRead := b.lastRead
	b.mu.Unlock()

	for _, channelID := range channels {
		msgs, err := b.transport.History(ctx, channelID, lastRead, 50)
		if err != nil {
			b.warnf("poll history %s: %v", channelID, err)
			continue
		}
		for _, msg := range msgs {
			b.handle(ctx, msg)
			b.mu.Lock()
			if msg.Ts > b.lastRead {
				b.lastRead = msg.Ts
			}
			b.mu.Unlock()
		}
	}
}

// handle applies the filtering, classification, and routing rules of
// spec.md §4.3.2/§4.3.3; it recovers from any panic in a handler so the
// daemon thread never dies (spec.md §4.3.1: "catches all exceptions").
func (b *Bridge) handle(ctx context.Context, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.warnf("inbound handler panic recovered: %v", r)
		}
	}()

	if msg.IsFromBot() {
		return
	}

	accept, reason := b.identity.ShouldProcess(msg)
	b.logf("inbound %s: accept=%v reason=%s", msg.Ts, accept, reason)
	if !accept {
		return
	}

	b.mu.Lock()
	_, inThread := b.threads[msg.ThreadTS]
	b.mu.Unlock()

	switch Classify(msg, inThread) {
	case ClassNewFeature:
		go b.IntakeSubmission(ctx, msg, ClassNewFeature)
	case ClassNewDefect:
		go b.IntakeSubmission(ctx, msg, ClassNewDefect)
	case ClassControlStop:
		b.writeStopSemaphore(msg)
	case ClassControlSkip:
		b.writeSkipMarker(msg)
	case ClassInfoRequest:
		go b.postStatusSummary(ctx, msg)
	case ClassQuestionAnswer:
		b.routeSuspensionReply(ctx, msg)
	case ClassQuestion:
		go b.AnswerQuestion(ctx, msg)
	case ClassAcknowledgement:
		b.logf("acknowledged message %s in %s", msg.Ts, msg.ChannelID)
	}
}

func (b *Bridge) writeStopSemaphore(msg Message) {
	if err := writeSemaphore(b.cfg.StopSemaphorePath()); err != nil {
		b.warnf("write stop semaphore: %v", err)
	}
}

func (b *Bridge) writeSkipMarker(msg Message) {
	if err := writeSemaphore(b.skipMarkerPath()); err != nil {
		b.warnf("write skip marker: %v", err)
	}
}

func (b *Bridge) skipMarkerPath() string {
	return b.cfg.StopSemaphorePath() + ".skip"
}

func (b *Bridge) logf(format string, args ...any) {
	if b.display != nil {
		b.display.Info("bridge", fmt.Sprintf(format, args...))
	}
}

func (b *Bridge) warnf(format string, args ...any) {
	if b.display != nil {
		b.display.Warning(fmt.Sprintf(format, args...))
	}
}

// --- planexec.Notifier implementation (spec.md §9: "pass a cancellation
// context with an attached notifier" rather than a global Slack reference) ---

func (b *Bridge) NotifyInfo(message string) {
	b.postIfEnabled(b.slack.Notify.OnInfo, "notifications", message)
}

func (b *Bridge) NotifyWarning(message string) {
	b.postIfEnabled(b.slack.Notify.OnWarning, "notifications", message)
}

func (b *Bridge) NotifyError(message string) {
	b.postIfEnabled(b.slack.Notify.OnFailure, "notifications", message)
}

func (b *Bridge) NotifyCompletion(message string) {
	b.postIfEnabled(b.slack.Notify.OnCompletion, "reports", message)
}

// Relay backs display.Display.SetRelay: any Warning/Error printed to the
// console while a bridge is running is also posted to Slack, so an operator
// watching a thread sees the same signal as whoever is at the terminal.
func (b *Bridge) Relay(level, message string) {
	switch level {
	case "error":
		b.NotifyError(message)
	default:
		b.NotifyWarning(message)
	}
}

func (b *Bridge) postIfEnabled(enabled bool, role, message string) {
	if !enabled || !b.slack.Enabled {
		return
	}
	b.mu.Lock()
	channelID, ok := b.channels[role]
	b.mu.Unlock()
	if !ok {
		channelID = b.slack.ChannelID
	}
	if channelID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := b.transport.PostMessage(ctx, channelID, b.identity.Sign(message), ""); err != nil {
		b.warnf("post notification: %v", err)
	}
}

// writeSemaphore creates an empty control-flag file (stop/skip), the same
// mkdir+write idiom internal/pipeline.forcePipelineExit uses for its own
// stop semaphore.
func writeSemaphore(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0o644)
}

// gitRun runs a git subcommand rooted at dir, grounded on the same
// exec.Command("git", ...)+CombinedOutput() idiom used throughout
// internal/worktree and internal/pipeline/archive.go.
func gitRun(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %v: %w: %s", args, err, string(out))
	}
	return nil
}
