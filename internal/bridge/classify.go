package bridge

import (
	"regexp"
	"strings"
)

// Classification is the inbound-message category assigned by §4.3.3's
// prefix-matching table.
type Classification string

const (
	ClassNewFeature     Classification = "new_feature"
	ClassNewDefect      Classification = "new_defect"
	ClassControlStop    Classification = "control_stop"
	ClassControlSkip    Classification = "control_skip"
	ClassInfoRequest    Classification = "info_request"
	ClassQuestion       Classification = "question"
	ClassQuestionAnswer Classification = "question_answer"
	ClassAcknowledgement Classification = "acknowledgement"
)

var questionWords = []string{"what", "why", "how", "when", "where", "who", "which", "can", "could", "should", "would", "is", "are", "do", "does"}

// Classify applies the ordered prefix-matching table of spec.md §4.3.3.
// inSuspensionThread reports whether msg is a reply inside a tracked suspension
// thread; the caller (Bridge) is the one that knows the thread map, so it
// is passed in rather than looked up here.
func Classify(msg Message, inSuspensionThread bool) Classification {
	text := strings.TrimSpace(msg.Text)
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(lower, "feature:"), strings.HasPrefix(lower, "enhancement:"):
		return ClassNewFeature
	case strings.HasPrefix(lower, "defect:"), strings.HasPrefix(lower, "bug:"):
		return ClassNewDefect
	case lower == "stop" || lower == "pause":
		return ClassControlStop
	case lower == "skip":
		return ClassControlSkip
	case lower == "status" || lower == "status?":
		return ClassInfoRequest
	}

	if inSuspensionThread {
		return ClassQuestionAnswer
	}

	if strings.HasSuffix(text, "?") || startsWithQuestionWord(lower) {
		return ClassQuestion
	}

	return ClassAcknowledgement
}

func startsWithQuestionWord(lower string) bool {
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return false
	}
	first := strings.TrimFunc(fields[0], func(r rune) bool {
		return !('a' <= r && r <= 'z')
	})
	for _, w := range questionWords {
		if first == w {
			return true
		}
	}
	return false
}

// StripPrefix removes the classification prefix (e.g. "feature:") from an
// inbound message, trimmed for use as the raw submission body passed to
// 5-Whys intake.
func StripPrefix(text string) string {
	prefixPattern := regexp.MustCompile(`(?i)^\s*(feature|enhancement|defect|bug)\s*:\s*`)
	return prefixPattern.ReplaceAllString(text, "")
}
