// Package validate parses the verdict grammar validator agents are
// instructed to emit (spec 4.1.12), grounded on the teacher executor's
// regex-over-captured-output idiom (see executor.ExtractTaskType and its
// taskTypePattern).
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// Verdict is the aggregate outcome of a validator's findings.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictWarn Verdict = "WARN"
	VerdictFail Verdict = "FAIL"
)

var (
	verdictLinePattern = regexp.MustCompile(`(?i)\*\*Verdict:\s*(PASS|WARN|FAIL)\s*\*\*`)
	findingLinePattern = regexp.MustCompile(`(?i)^-\s*\[(PASS|WARN|FAIL)\]\s*(.+)$`)
)

// Result holds a single validator's parsed output.
type Result struct {
	Verdict  Verdict
	Findings []planio.ValidationFinding
}

// Parse extracts the verdict and findings list from a validator's raw text
// output. It returns an error if no "**Verdict: ...**" marker is found,
// since the prompt requires the validator to always emit one.
func Parse(output string) (*Result, error) {
	m := verdictLinePattern.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("validator output missing \"**Verdict: PASS|WARN|FAIL**\" marker")
	}

	r := &Result{Verdict: Verdict(strings.ToUpper(m[1]))}

	for _, line := range strings.Split(output, "\n") {
		fm := findingLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if fm == nil {
			continue
		}
		r.Findings = append(r.Findings, planio.ValidationFinding{
			Verdict:     strings.ToUpper(fm[1]),
			Description: strings.TrimSpace(fm[2]),
		})
	}

	return r, nil
}

// Aggregate combines multiple validators' verdicts per spec 4.1.12:
// any FAIL wins, else any WARN wins, else PASS.
func Aggregate(results []*Result) Verdict {
	sawWarn := false
	for _, r := range results {
		switch r.Verdict {
		case VerdictFail:
			return VerdictFail
		case VerdictWarn:
			sawWarn = true
		}
	}
	if sawWarn {
		return VerdictWarn
	}
	return VerdictPass
}

// AllFindings flattens every validator's findings in invocation order, for
// storing on the task or including in the next attempt's prompt.
func AllFindings(results []*Result) []planio.ValidationFinding {
	var out []planio.ValidationFinding
	for _, r := range results {
		out = append(out, r.Findings...)
	}
	return out
}
