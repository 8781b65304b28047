// Package display provides unified output formatting for ralphctl and
// ralphd. It visually separates orchestrator messages (plan/pipeline
// lifecycle) from the agent CLI's own output and from analysis-session
// output, and optionally relays warnings/errors into an active Slack thread
// via internal/bridge.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// Display handles all CLI output with visual hierarchy
type Display struct {
	theme     *Theme
	termWidth int
	noColor   bool
	relay     func(level, message string)
}

// New creates a new Display instance
func New() *Display {
	return NewWithOptions(false)
}

// NewWithOptions creates a Display with configuration
func NewWithOptions(noColor bool) *Display {
	d := &Display{
		termWidth: getTerminalWidth(),
		noColor:   noColor,
	}
	if noColor {
		d.theme = NoColorTheme()
	} else {
		d.theme = DefaultTheme()
	}
	return d
}

// SetRelay installs a hook invoked alongside every Warning/Error call, in
// addition to the normal console output. internal/bridge wires its own
// Notify{Warning,Error} here so a running pipeline's warnings and errors
// also reach whatever Slack thread is currently active, without every
// caller in internal/planexec and internal/pipeline needing its own
// reference to the bridge.
func (d *Display) SetRelay(fn func(level, message string)) {
	d.relay = fn
}

// getTerminalWidth returns the terminal width, defaulting to 80
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	if width > 120 {
		return 120 // Cap at 120 for readability
	}
	return width
}

// Ralph prints a boxed message for Ralph orchestration output
func (d *Display) Ralph(lines ...string) {
	d.RalphBox("RALPH", lines...)
}

// PipelineBox prints a boxed message headed "PIPELINE", used by ralphd for
// its own startup/shutdown banners (internal/pipeline.Pipeline.Run), kept
// visually distinct from a single plan's "RALPH" box since a pipeline run
// spans many plans.
func (d *Display) PipelineBox(lines ...string) {
	d.RalphBox("PIPELINE", lines...)
}

// RalphBox prints a boxed message with a custom title
func (d *Display) RalphBox(title string, lines ...string) {
	if len(lines) == 0 {
		return
	}

	width := d.termWidth - 2
	titleLen := len(title) + 4 // "─ TITLE "
	remainingWidth := width - titleLen

	// Top border: ┌─ RALPH ─────────────────────────┐
	topLine := BoxTopLeft + BoxHorizontal + " " + title + " " + strings.Repeat(BoxHorizontal, remainingWidth) + BoxTopRight
	fmt.Println(d.theme.RalphBorder(topLine))

	// Content lines: │ text                            │
	for _, line := range lines {
		paddedLine := d.padRight(line, width-2)
		fmt.Println(d.theme.RalphBorder(BoxVertical) + " " + d.theme.RalphText(paddedLine) + " " + d.theme.RalphBorder(BoxVertical))
	}

	// Bottom border: └─────────────────────────────────┘
	bottomLine := BoxBottomLeft + strings.Repeat(BoxHorizontal, width) + BoxBottomRight
	fmt.Println(d.theme.RalphBorder(bottomLine))
}

// RalphStatus prints a single-line Ralph status message (no box)
func (d *Display) RalphStatus(symbol, message string) {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("%s %s %s\n",
		d.theme.RalphBorder(timestamp),
		symbol,
		d.theme.RalphText(message))
}

// Success prints a success message with green checkmark
func (d *Display) Success(message string) {
	d.RalphStatus(d.theme.Success(SymbolSuccess), message)
}

// Error prints an error message with red X, and relays it if SetRelay was
// called.
func (d *Display) Error(message string) {
	d.RalphStatus(d.theme.Error(SymbolError), message)
	if d.relay != nil {
		d.relay("error", message)
	}
}

// Warning prints a warning message with yellow triangle, and relays it if
// SetRelay was called.
func (d *Display) Warning(message string) {
	d.RalphStatus(d.theme.Warning(SymbolWarning), message)
	if d.relay != nil {
		d.relay("warning", message)
	}
}

// Info prints an info message with cyan indicator
func (d *Display) Info(label, message string) {
	d.RalphStatus(d.theme.Info(label+":"), message)
}

// Resume prints a resume/bailout message with cyan arrow
func (d *Display) Resume(message string) {
	d.RalphStatus(d.theme.Info(SymbolResume), message)
}

// ClaudeStart prints a header when Claude execution begins
func (d *Display) ClaudeStart() {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("  %s %s Sending to Claude...\n",
		d.theme.Dim(timestamp),
		d.theme.ClaudeTimestamp(GutterClaude))
}

// wrapText wraps text to specified width, returns at most 5 lines
func (d *Display) wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	text = strings.TrimSpace(text)
	if len(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len()+len(word)+1 > maxWidth {
			if currentLine.Len() > 0 {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
			}
		}
		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	// Limit to 5 lines
	if len(lines) > 5 {
		lines = lines[:5]
		if len(lines[4]) > maxWidth-3 {
			lines[4] = lines[4][:maxWidth-3]
		}
		lines[4] = lines[4] + "..."
	}

	return lines
}

// Claude prints Claude Code output with left gutter indicator
func (d *Display) Claude(text string, toolCount int) {
	timestamp := time.Now().Format("[15:04:05]")
	gutter := d.theme.ClaudeTimestamp(GutterClaude)

	toolStr := ""
	if toolCount > 0 {
		toolStr = fmt.Sprintf(" %s", d.theme.ClaudeToolCount(fmt.Sprintf("[%d]", toolCount)))
	}

	lines := d.wrapText(text, d.termWidth-20)

	for i, line := range lines {
		if i == 0 {
			fmt.Printf("  %s %s%s %s\n", gutter, d.theme.Dim(timestamp), toolStr, d.theme.ClaudeText(line))
		} else {
			fmt.Printf("  %s %s%s\n", d.theme.ClaudeTimestamp(GutterDot), strings.Repeat(" ", 10), d.theme.ClaudeText(line))
		}
	}
}

// ClaudeDone prints Claude completion message (indented)
func (d *Display) ClaudeDone(result string) {
	timestamp := time.Now().Format("[15:04:05]")
	line := fmt.Sprintf("%s%s %s %s",
		IndentClaude,
		d.theme.ClaudeTimestamp(timestamp),
		d.theme.ClaudeToolCount("[Done]"),
		d.theme.ClaudeText(result))
	fmt.Println(line)
}

// ClaudeWorkingOn prints the "WORKING ON" banner for PRD selection
func (d *Display) ClaudeWorkingOn(id string) {
	banner := fmt.Sprintf(">>> WORKING ON: %s <<<", id)
	fmt.Printf("\n%s%s\n\n", IndentClaude, d.theme.RalphLabel(banner))
}

// SectionBreak prints a horizontal separator for iteration boundaries
func (d *Display) SectionBreak() {
	width := d.termWidth
	fmt.Println(d.theme.Separator(strings.Repeat(SectionBreak, width)))
}

// TaskUsage prints a completed task's cost/token/turn summary in the same
// single-line style as RalphStatus (spec.md §4.1.1's usage report, mirrored
// to the console as each entry is recorded by
// internal/planexec.Executor.recordUsage).
func (d *Display) TaskUsage(taskID string, costUSD float64, inputTokens, outputTokens, numTurns int) {
	line := fmt.Sprintf("%s: $%.4f (in: %d, out: %d, turns: %d)", taskID, costUSD, inputTokens, outputTokens, numTurns)
	d.RalphStatus(d.theme.Dim(""), line)
}

// padRight pads a string to the specified width
func (d *Display) padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// AnalysisStart prints the header when a read-only analysis session begins
// (spec.md §4.2.4: single-pass analysis backlog items).
func (d *Display) AnalysisStart(slug, analysisType string) {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("\n%s %s %s\n",
		d.theme.Dim(timestamp),
		d.theme.AnalysisGutter(GutterAnalysis),
		d.theme.AnalysisText(fmt.Sprintf("Analyzing %s (%s)...", slug, analysisType)))
}

// Analysis prints analysis output with distinct styling
func (d *Display) Analysis(text string) {
	lines := d.wrapText(text, d.termWidth-15)
	for i, line := range lines {
		if i == 0 {
			fmt.Printf("  %s %s\n", d.theme.AnalysisGutter(GutterAnalysis), d.theme.AnalysisText(line))
		} else {
			fmt.Printf("  %s %s\n", d.theme.AnalysisGutter(GutterDot), d.theme.AnalysisText(line))
		}
	}
}

// AnalysisComplete prints the report path an analysis session produced.
func (d *Display) AnalysisComplete(slug, reportPath string) {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("%s %s %s\n",
		d.theme.Dim(timestamp),
		d.theme.AnalysisGutter(GutterAnalysis),
		d.theme.Success(fmt.Sprintf("analysis %s complete: %s", slug, reportPath)))
}
