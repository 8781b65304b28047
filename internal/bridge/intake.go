package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/agent"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/pipeline"
)

const fiveWhysTimeout = 120 * time.Second

var (
	whyLinePattern   = regexp.MustCompile(`(?im)^\s*why\s*\d+[:.]?\s*(.+)$`)
	rootNeedPattern  = regexp.MustCompile(`(?im)^##?\s*root\s*need\s*:?\s*\n?(.+)$`)
	titlePattern     = regexp.MustCompile(`(?im)^##?\s*title\s*:?\s*(.+)$`)
	descPattern      = regexp.MustCompile(`(?is)##?\s*description\s*:?\s*\n(.+?)(\n##|\z)`)
)

// fiveWhysResult is the parsed outcome of a 5-Whys intake call (spec.md
// §4.3.4).
type fiveWhysResult struct {
	Title          string
	Classification Classification
	RootNeed       string
	Description    string
	Whys           []string
}

func (r fiveWhysResult) complete() bool {
	return len(r.Whys) >= 5 && r.RootNeed != ""
}

// runFiveWhys calls the agent CLI with the 5-Whys prompt and parses the
// reply; on an incomplete result it retries once with a prompt that
// includes the prior attempt, then accepts the better of the two even if
// still short, logging a warning (spec.md §4.3.4's graceful-degradation
// rule).
func (b *Bridge) runFiveWhys(ctx context.Context, rawText string, classification Classification) (fiveWhysResult, error) {
	ctx, cancel := context.WithTimeout(ctx, fiveWhysTimeout)
	defer cancel()

	prompt := fiveWhysPrompt(rawText, classification, "")
	first, err := b.oneShot(ctx, prompt)
	if err != nil {
		return fiveWhysResult{}, fmt.Errorf("5-whys call: %w", err)
	}
	result := parseFiveWhys(first, classification)
	if result.complete() {
		return result, nil
	}

	retryPrompt := fiveWhysPrompt(rawText, classification, first)
	second, err := b.oneShot(ctx, retryPrompt)
	if err != nil {
		b.warnf("5-whys retry failed, using incomplete first result: %v", err)
		return result, nil
	}
	retryResult := parseFiveWhys(second, classification)
	if len(retryResult.Whys) > len(result.Whys) || (retryResult.RootNeed != "" && result.RootNeed == "") {
		if !retryResult.complete() {
			b.warnf("5-whys intake still incomplete after retry (%d/5 whys)", len(retryResult.Whys))
		}
		return retryResult, nil
	}
	if !result.complete() {
		b.warnf("5-whys intake still incomplete after retry (%d/5 whys)", len(result.Whys))
	}
	return result, nil
}

func fiveWhysPrompt(rawText string, classification Classification, priorAttempt string) string {
	var sb strings.Builder
	sb.WriteString("Run a 5 Whys analysis on the following submission. Produce exactly 5 numbered ")
	sb.WriteString("\"Why N: ...\" lines drilling from the symptom to the root cause, then a \"## Root Need\" ")
	sb.WriteString("section stating the underlying need in one sentence, a \"## Title\" line, and a ")
	sb.WriteString("\"## Description\" section suitable for a backlog item.\n\n")
	sb.WriteString("Submission:\n" + rawText + "\n")
	if priorAttempt != "" {
		sb.WriteString("\nThe previous attempt was incomplete:\n" + priorAttempt + "\n")
		sb.WriteString("Produce a complete result this time: exactly 5 Whys and a Root Need line.\n")
	}
	return sb.String()
}

func parseFiveWhys(text string, classification Classification) fiveWhysResult {
	var whys []string
	for _, m := range whyLinePattern.FindAllStringSubmatch(text, -1) {
		whys = append(whys, strings.TrimSpace(m[1]))
	}
	r := fiveWhysResult{Classification: classification, Whys: whys}
	if m := rootNeedPattern.FindStringSubmatch(text); m != nil {
		r.RootNeed = strings.TrimSpace(m[1])
	}
	if m := titlePattern.FindStringSubmatch(text); m != nil {
		r.Title = strings.TrimSpace(m[1])
	}
	if m := descPattern.FindStringSubmatch(text); m != nil {
		r.Description = strings.TrimSpace(m[1])
	}
	if r.Title == "" {
		r.Title = firstLine(rawFallback(text))
	}
	return r
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func rawFallback(text string) string {
	t := strings.TrimSpace(text)
	if len(t) > 80 {
		return t[:80]
	}
	return t
}

// IntakeSubmission runs the full async intake flow of spec.md §4.3.4:
// immediate threaded acknowledgement, background 5-Whys call, threaded
// summary, and backlog item creation + commit. Called from a goroutine so
// the bridge's main receive loop never blocks on it.
func (b *Bridge) IntakeSubmission(ctx context.Context, msg Message, classification Classification) {
	itemType := "feature"
	if classification == ClassNewDefect {
		itemType = "defect"
	}

	ackTS, err := b.transport.PostMessage(ctx, msg.ChannelID,
		fmt.Sprintf("Received your %s request. Analyzing…", itemType), threadRoot(msg))
	if err != nil {
		b.warnf("post intake acknowledgement: %v", err)
	}

	raw := StripPrefix(msg.Text)
	result, err := b.runFiveWhys(ctx, raw, classification)
	if err != nil {
		b.warnf("5-whys intake failed for %s: %v", msg.Ts, err)
		return
	}

	destDir := b.cfg.FeatureBacklogDir
	if itemType == "defect" {
		destDir = b.cfg.DefectBacklogDir
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		b.warnf("create backlog dir %s: %v", destDir, err)
		return
	}
	slug := pipeline.NextSlug(destDir, pipeline.Slugify(result.Title))
	path := filepath.Join(destDir, slug+".md")
	body := formatBacklogBody(itemType, result)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		b.warnf("write backlog item %s: %v", path, err)
		return
	}
	if err := commitBacklogItem(b.cfg.ProjectRoot, path, slug); err != nil {
		b.warnf("commit backlog item %s: %v", path, err)
	}

	summary := fmt.Sprintf("*%s*\nClassification: %s\nRoot need: %s", result.Title, itemType, result.RootNeed)
	if _, err := b.transport.PostMessage(ctx, msg.ChannelID, summary, firstNonEmpty(ackTS, threadRoot(msg))); err != nil {
		b.warnf("post intake summary: %v", err)
	}
}

func formatBacklogBody(itemType string, r fiveWhysResult) string {
	var sb strings.Builder
	sb.WriteString("## Status: Open\n\n")
	sb.WriteString("## Classification\n" + itemType + "\n\n")
	sb.WriteString("# " + r.Title + "\n\n")
	if r.Description != "" {
		sb.WriteString(r.Description + "\n\n")
	}
	sb.WriteString("## 5 Whys\n")
	for i, w := range r.Whys {
		sb.WriteString(fmt.Sprintf("Why %d: %s\n", i+1, w))
	}
	sb.WriteString("\n## Root Need\n" + r.RootNeed + "\n")
	return sb.String()
}

// commitBacklogItem stages and commits a newly created backlog item,
// grounded on the same exec.Command("git", ...)+CombinedOutput() idiom
// internal/pipeline's archive.go uses for its own git operations.
func commitBacklogItem(projectRoot, path, slug string) error {
	if err := gitRun(projectRoot, "add", path); err != nil {
		return err
	}
	return gitRun(projectRoot, "commit", "-m", "intake: add "+slug)
}

func threadRoot(msg Message) string {
	if msg.ThreadTS != "" {
		return msg.ThreadTS
	}
	return msg.Ts
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// noopHandler discards stream-json progress for the bridge's own one-shot
// LLM calls (5-Whys, Q&A), mirroring internal/pipeline's noopHandler.
type noopHandler struct{}

func (noopHandler) OnToolUse(string) {}
func (noopHandler) OnText(string)    {}

// oneShot runs a single non-interactive agent call on the fast/cheap tier
// and returns its final text result, reusing the Execute/ParseStreamJSON
// one-shot-session idiom shared with internal/pipeline's
// runOneShotSession.
func (b *Bridge) oneShot(ctx context.Context, prompt string) (string, error) {
	r, err := b.claude.Execute(ctx, llm.ExecuteOptions{
		Prompt:       prompt,
		Model:        "haiku",
		AllowedTools: agent.AllowedTools(agent.ProfileDesign),
		WorkDir:      b.cfg.ProjectRoot,
		OutputFormat: llm.OutputFormatStreamJSON,
	})
	if err != nil {
		return "", err
	}
	defer r.Close()
	result, err := llm.ParseStreamJSON(r, noopHandler{})
	if err != nil {
		return "", err
	}
	return result.Result, nil
}
