package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// qaTurn is one (question, answer) exchange in the rolling history window
// (spec.md §4.3.5).
type qaTurn struct {
	Question string
	Answer   string
}

// AnswerQuestion implements spec.md §4.3.5: gather on-disk state, format a
// plain-text context block prefixed with the rolling history, call the
// fast/cheap model tier, append the exchange, and trim to window size.
func (b *Bridge) AnswerQuestion(ctx context.Context, msg Message) {
	context_ := b.gatherStateContext()

	b.mu.Lock()
	historyBlock := formatHistory(b.history)
	maxTurns := b.slack.ConversationHistory.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 3
	}
	b.mu.Unlock()

	prompt := historyBlock + "\n\nCurrent state:\n" + context_ + "\n\nQuestion: " + msg.Text + "\n\nAnswer concisely."
	answer, err := b.oneShot(ctx, prompt)
	if err != nil {
		b.warnf("answer question %s: %v", msg.Ts, err)
		return
	}

	b.mu.Lock()
	b.history = append(b.history, qaTurn{Question: msg.Text, Answer: answer})
	if len(b.history) > maxTurns {
		b.history = b.history[len(b.history)-maxTurns:]
	}
	b.mu.Unlock()

	if _, err := b.transport.PostMessage(ctx, msg.ChannelID, answer, threadRoot(msg)); err != nil {
		b.warnf("post question answer: %v", err)
	}
}

func formatHistory(history []qaTurn) string {
	if len(history) == 0 {
		return "No prior conversation history."
	}
	var sb strings.Builder
	sb.WriteString("Prior conversation:\n")
	for _, t := range history {
		sb.WriteString("Q: " + t.Question + "\nA: " + t.Answer + "\n")
	}
	return sb.String()
}

// postStatusSummary answers an explicit "status"/"status?" message
// (classified info_request) with the same state-gathering logic as
// AnswerQuestion but without consuming an LLM call or the rolling window.
func (b *Bridge) postStatusSummary(ctx context.Context, msg Message) {
	summary := b.gatherStateContext()
	if _, err := b.transport.PostMessage(ctx, msg.ChannelID, summary, threadRoot(msg)); err != nil {
		b.warnf("post status summary: %v", err)
	}
}

// gatherStateContext collects active plans, last task status, backlog
// sizes, and session cost/token estimates from disk, formatted as plain
// text (spec.md §4.3.5). Costs are presented as API-equivalent estimates,
// explicitly labeled as not actual subscription charges.
func (b *Bridge) gatherStateContext() string {
	var sb strings.Builder

	plans, _ := filepath.Glob(filepath.Join(b.cfg.PlansDir, "*.yaml"))
	sb.WriteString(fmt.Sprintf("Active plans: %d\n", len(plans)))

	var totalCost float64
	var totalTokens int
	for _, p := range plans {
		plan, err := planio.LoadPlan(p)
		if err != nil {
			continue
		}
		for _, t := range plan.AllTasks() {
			if t.Usage == nil {
				continue
			}
			totalCost += t.Usage.TotalCostUSD
			totalTokens += t.Usage.InputTokens + t.Usage.OutputTokens
		}
	}
	sb.WriteString(fmt.Sprintf("Session cost estimate: ~$%.4f (API-equivalent, not actual subscription charges)\n", totalCost))
	sb.WriteString(fmt.Sprintf("Session tokens: %d\n", totalTokens))

	statusPath := filepath.Join(b.cfg.PlansDir, "task-status.json")
	if hs, err := planio.ReadHandshake(statusPath); err == nil && hs != nil {
		sb.WriteString(fmt.Sprintf("Last task status: %s (%s)\n", hs.Status, hs.Message))
	}

	for _, dir := range []struct {
		name string
		path string
	}{
		{"defects", b.cfg.DefectBacklogDir},
		{"features", b.cfg.FeatureBacklogDir},
		{"analyses", b.cfg.AnalysisBacklogDir},
	} {
		entries, _ := os.ReadDir(dir.path)
		sb.WriteString(fmt.Sprintf("Backlog %s: %d\n", dir.name, len(entries)))
	}

	return sb.String()
}
