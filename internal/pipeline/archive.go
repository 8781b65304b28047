package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// completedSubdir maps an item type to its archive destination directory
// under docs/completed-backlog/ (spec 4.2.2 Phase 4, spec 6).
func completedSubdir(cfg *Config, t planio.ItemType) string {
	switch t {
	case planio.ItemDefect:
		return filepath.Join(cfg.CompletedDir, "defects")
	case planio.ItemFeature:
		return filepath.Join(cfg.CompletedDir, "features")
	case planio.ItemAnalysis:
		return filepath.Join(cfg.CompletedDir, "analyses")
	default:
		return cfg.CompletedDir
	}
}

// archiveItem moves a backlog item to its completed directory and commits
// the move. Idempotent per spec 4.2.3: if the destination already exists
// (a prior interrupted run already moved it, leaving the source orphaned by
// a crash before cleanup), remove the orphan source and return success
// rather than attempting the move again — "a previous generation of this
// system infinite-looped on exactly that bug".
func archiveItem(cfg *Config, item *planio.Item) error {
	destDir := completedSubdir(cfg, item.Type)
	dest := filepath.Join(destDir, filepath.Base(item.Path))

	if fileExists(dest) {
		if fileExists(item.Path) {
			if err := os.Remove(item.Path); err != nil {
				return fmt.Errorf("remove orphaned source %s after prior archive: %w", item.Path, err)
			}
		}
		return nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir %s: %w", destDir, err)
	}

	if err := gitCmd(cfg.ProjectRoot, "mv", item.Path, dest); err != nil {
		return fmt.Errorf("git mv archive %s: %w", item.Slug, err)
	}
	if err := gitCmd(cfg.ProjectRoot, "commit", "-m", fmt.Sprintf("archive %s", item.Slug)); err != nil {
		return fmt.Errorf("commit archive %s: %w", item.Slug, err)
	}
	return nil
}

func gitCmd(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w\noutput: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// gitStatusPorcelain returns `git status --porcelain` output scoped to path,
// used to detect leftover uncommitted archival changes at startup (spec
// 4.2.1's recovery commit sweep).
func gitStatusPorcelain(repoDir, path string) (string, error) {
	cmd := exec.Command("git", "status", "--porcelain", "--", path)
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git status: %w\noutput: %s", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var (
	rootCausePattern = regexp.MustCompile(`(?is)##\s*Root Cause\s*\n+(.+?)(?:\n\s*\n|\n##|$)`)
	rootNeedPattern  = regexp.MustCompile(`(?is)##\s*Root Need\s*\n+(.+?)(?:\n\s*\n|\n##|$)`)
	summaryPattern   = regexp.MustCompile(`(?is)##\s*Summary\s*\n+(.+?)(?:\n\s*\n|\n##|$)`)
	verificationLogEntryPattern = regexp.MustCompile(`(?m)^-\s*\[(PASS|WARN|FAIL)\]\s*(.+)$`)
)

// completionSummary is the Slack-ready digest of a completed item (spec
// 4.2.2 step 5: "Root Cause / Root Need / Summary, first sentence; plus the
// last verification log fix detail").
type completionSummary struct {
	RootCause       string
	RootNeed        string
	Summary         string
	LastFixDetail   string
}

func extractCompletionSummary(body string) completionSummary {
	return completionSummary{
		RootCause:     firstSentence(firstMatch(rootCausePattern, body)),
		RootNeed:      firstSentence(firstMatch(rootNeedPattern, body)),
		Summary:       firstSentence(firstMatch(summaryPattern, body)),
		LastFixDetail: lastVerificationFinding(body),
	}
}

func firstMatch(re *regexp.Regexp, body string) string {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if idx := strings.IndexAny(text, ".\n"); idx != -1 {
		return strings.TrimSpace(text[:idx+1])
	}
	return text
}

func lastVerificationFinding(body string) string {
	matches := verificationLogEntryPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return ""
	}
	last := matches[len(matches)-1]
	return strings.TrimSpace(last[2])
}

// Message renders the completion summary for the notifications channel.
func (s completionSummary) Message(item *planio.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Completed %s: %s\n", item.Type, item.Slug)
	if s.RootCause != "" {
		fmt.Fprintf(&b, "Root cause: %s\n", s.RootCause)
	}
	if s.RootNeed != "" {
		fmt.Fprintf(&b, "Root need: %s\n", s.RootNeed)
	}
	if s.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", s.Summary)
	}
	if s.LastFixDetail != "" {
		fmt.Fprintf(&b, "Last fix: %s\n", s.LastFixDetail)
	}
	return b.String()
}
