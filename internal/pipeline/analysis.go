package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/daydemir/ralph-orchestrator/internal/agent"
	"github.com/daydemir/ralph-orchestrator/internal/display"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/planexec"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

var (
	analysisTypePattern = regexp.MustCompile(`(?im)^##\s*Analysis Type\s*\n+(.+)$`)
	outputFormatPattern = regexp.MustCompile(`(?im)^##\s*Output Format\s*\n+(.+)$`)
)

// ProcessAnalysisItem runs the single-pass analysis pipeline (spec 4.2.4):
// one read-only agent session selected by the item's Analysis Type field,
// producing a markdown report written to ReportsDir/<slug>.md (the item's
// Output Format, if any, is only quoted in the completion notification),
// then archived directly — no plan creation, no verification cycle.
func ProcessAnalysisItem(ctx context.Context, cfg *Config, claude llm.Backend, notifier planexec.Notifier, disp *display.Display, item *planio.Item) error {
	if disp == nil {
		disp = display.New()
	}

	analysisType := firstMatch(analysisTypePattern, item.Body)
	if analysisType == "" {
		analysisType = "general"
	}
	outputFormat := firstMatch(outputFormatPattern, item.Body)

	disp.AnalysisStart(item.Slug, analysisType)

	prompt := fmt.Sprintf(
		"Perform a %s analysis per the scope and instructions below. Produce a markdown report.\n\n%s",
		analysisType, item.Body,
	)

	report, err := runOneShotSession(ctx, claude, cfg, agent.ProfileReadOnly, prompt, "sonnet")
	if err != nil {
		return fmt.Errorf("analysis session for %s: %w", item.Slug, err)
	}
	disp.Analysis(report)

	reportPath := filepath.Join(cfg.ReportsDir, item.Slug+".md")
	if err := os.MkdirAll(cfg.ReportsDir, 0o755); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}
	if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", reportPath, err)
	}

	if err := archiveItem(cfg, item); err != nil {
		return fmt.Errorf("archive analysis %s: %w", item.Slug, err)
	}

	disp.AnalysisComplete(item.Slug, reportPath)

	if outputFormat != "" {
		notifier.NotifyInfo(fmt.Sprintf("analysis %s complete (%s): %s", item.Slug, outputFormat, reportPath))
	} else {
		notifier.NotifyInfo(fmt.Sprintf("analysis %s complete: %s", item.Slug, reportPath))
	}

	return nil
}
