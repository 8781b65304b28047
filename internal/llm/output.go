package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// ContentBlock is a single block inside an assistant message (text or
// tool_use), matching the teacher's stream-json shape.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"` // for tool_use
}

// MessageContent is the message field of an "assistant" stream event.
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ResultEvent is the final "result" event of a stream, or the entirety of a
// non-verbose JSON response (spec 4.1.6: "Always extract TaskUsage via a
// pure helper from the result event").
type ResultEvent struct {
	Type           string  `json:"type"`
	Subtype        string  `json:"subtype,omitempty"`
	Result         string  `json:"result"`
	IsError        bool    `json:"is_error"`
	NumTurns       int     `json:"num_turns"`
	DurationAPIMs  int64   `json:"duration_api_ms"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
	Usage          *struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	} `json:"usage,omitempty"`
}

// streamEvent is the envelope used while scanning stream-json lines: it may
// be an "assistant" message event or the final "result" event.
type streamEvent struct {
	Type    string          `json:"type"`
	Message *MessageContent `json:"message,omitempty"`
	ResultEvent
}

// OutputHandler receives parsed stream content as it arrives. Completion is
// never signaled through this interface — the executor always waits for the
// handshake file (spec 3.4) — this is display/progress plumbing only.
type OutputHandler interface {
	OnToolUse(name string)
	OnText(text string)
}

// ExtractUsage converts a ResultEvent into the plan's TaskUsage accounting
// block. TotalCostUSD is taken as-is from the agent CLI and never
// recomputed (spec 3.2).
func ExtractUsage(r *ResultEvent) planio.TaskUsage {
	u := planio.TaskUsage{
		TotalCostUSD:  r.TotalCostUSD,
		NumTurns:      r.NumTurns,
		DurationAPIMs: r.DurationAPIMs,
	}
	if r.Usage != nil {
		u.InputTokens = r.Usage.InputTokens
		u.OutputTokens = r.Usage.OutputTokens
		u.CacheReadTokens = r.Usage.CacheReadInputTokens
		u.CacheCreateTokens = r.Usage.CacheCreationInputTokens
	}
	return u
}

// ParseStreamJSON reads newline-delimited stream-json events (verbose mode,
// spec 4.1.6), forwarding text/tool-use blocks to handler and returning the
// final result event.
func ParseStreamJSON(reader io.Reader, handler OutputHandler) (*ResultEvent, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	var final *ResultEvent

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip malformed lines
		}

		switch event.Type {
		case "assistant":
			if event.Message == nil || handler == nil {
				continue
			}
			for _, content := range event.Message.Content {
				switch content.Type {
				case "tool_use":
					handler.OnToolUse(content.Name)
				case "text":
					handler.OnText(cleanText(content.Text))
				}
			}
		case "result":
			r := event.ResultEvent
			final = &r
		}
	}

	if err := scanner.Err(); err != nil {
		return final, err
	}
	if final == nil {
		return nil, fmt.Errorf("stream ended without a result event")
	}
	return final, nil
}

// ParseJSON parses the whole stdout as a single JSON result object
// (non-verbose mode, spec 4.1.6: "parse the whole stdout as JSON after
// close").
func ParseJSON(data []byte) (*ResultEvent, error) {
	var r ResultEvent
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse agent result JSON: %w", err)
	}
	return &r, nil
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

// rateLimitPattern matches messages like
// "resets Feb 9 at 6pm (America/Toronto)" or "resets Feb 9 at 6:30pm (UTC)"
// (spec 4.1.7).
var rateLimitPattern = regexp.MustCompile(`(?i)resets\s+([A-Za-z]{3,9})\s+(\d{1,2})\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)\s*\(([^)]+)\)`)

var monthsByName = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseRateLimitReset extracts a rate-limit reset instant from captured
// agent output (spec 4.1.7). Falls back to now+1h if a match is found but
// cannot be parsed into a valid instant; returns false if no rate-limit
// message is present at all.
func ParseRateLimitReset(output string, now time.Time) (time.Time, bool) {
	m := rateLimitPattern.FindStringSubmatch(output)
	if m == nil {
		return time.Time{}, false
	}

	month, ok := monthsByName[strings.ToLower(m[1])]
	if !ok {
		return now.Add(time.Hour), true
	}
	day, err := strconv.Atoi(m[2])
	if err != nil {
		return now.Add(time.Hour), true
	}
	hour, err := strconv.Atoi(m[3])
	if err != nil {
		return now.Add(time.Hour), true
	}
	minute := 0
	if m[4] != "" {
		minute, _ = strconv.Atoi(m[4])
	}
	if strings.EqualFold(m[5], "pm") && hour != 12 {
		hour += 12
	} else if strings.EqualFold(m[5], "am") && hour == 12 {
		hour = 0
	}

	loc, err := time.LoadLocation(m[6])
	if err != nil {
		loc = time.UTC
	}

	reset := time.Date(now.Year(), month, day, hour, minute, 0, 0, loc)
	// Handle year rollover: a reset that appears more than a month in the
	// past relative to now must actually be next year.
	if reset.Before(now.Add(-30 * 24 * time.Hour)) {
		reset = time.Date(now.Year()+1, month, day, hour, minute, 0, 0, loc)
	}

	return reset, true
}
