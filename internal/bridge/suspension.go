package bridge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

func (b *Bridge) suspendedDir() string {
	return filepath.Join(b.cfg.ProjectRoot, ".claude", "suspended")
}

// pollSuspensions periodically scans .claude/suspended/ for markers the
// Executor has written but the bridge hasn't yet posted a question for
// (spec.md §4.3.6), and posts each to the questions channel, recording
// thread_ts back into the marker so routeSuspensionReply can find it.
func (b *Bridge) pollSuspensions(ctx context.Context) {
	if !b.slack.Questions.Enabled {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pollSuspensionsOnce(ctx)
		}
	}
}

func (b *Bridge) pollSuspensionsOnce(ctx context.Context) {
	entries, err := os.ReadDir(b.suspendedDir())
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(b.suspendedDir(), e.Name())
		marker, err := planio.LoadSuspensionMarker(path)
		if err != nil || marker == nil {
			continue
		}
		if marker.ThreadTS != "" || marker.IsAnswered() {
			continue
		}
		b.postSuspensionQuestion(ctx, path, marker)
	}
}

func (b *Bridge) postSuspensionQuestion(ctx context.Context, path string, marker *planio.SuspensionMarker) {
	b.mu.Lock()
	channelID, ok := b.channels["questions"]
	b.mu.Unlock()
	if !ok {
		channelID = b.slack.ChannelID
	}
	if channelID == "" {
		return
	}

	ts, err := b.transport.PostMessage(ctx, channelID, marker.Question, "")
	if err != nil {
		b.warnf("post suspension question for %s: %v", marker.Slug, err)
		return
	}

	marker.ChannelID = channelID
	marker.ThreadTS = ts
	if err := planio.SaveSuspensionMarker(path, marker); err != nil {
		b.warnf("save suspension marker %s: %v", path, err)
		return
	}

	b.mu.Lock()
	b.threads[marker.Slug] = ts
	b.mu.Unlock()
}

// routeSuspensionReply implements the reply side of spec.md §4.3.6: a
// message arriving in a tracked suspension thread is matched to its marker
// by thread_ts, the answer is written in, and the next pipeline cycle picks
// the item back up (injecting the answer as additional planner context is
// the pipeline's job, reading this same marker file).
func (b *Bridge) routeSuspensionReply(ctx context.Context, msg Message) {
	b.mu.Lock()
	var slug string
	for s, ts := range b.threads {
		if ts == msg.ThreadTS {
			slug = s
			break
		}
	}
	b.mu.Unlock()
	if slug == "" {
		return
	}

	path := filepath.Join(b.suspendedDir(), slug+".json")
	marker, err := planio.LoadSuspensionMarker(path)
	if err != nil || marker == nil {
		b.warnf("load suspension marker for reply %s: %v", slug, err)
		return
	}
	marker.Answer = msg.Text
	if err := planio.SaveSuspensionMarker(path, marker); err != nil {
		b.warnf("save suspension marker answer %s: %v", path, err)
		return
	}

	b.mu.Lock()
	delete(b.threads, slug)
	b.mu.Unlock()

	if _, err := b.transport.PostMessage(ctx, msg.ChannelID, "Got it, resuming.", msg.ThreadTS); err != nil {
		b.warnf("acknowledge suspension reply: %v", err)
	}
}
