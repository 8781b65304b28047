package planio

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TaskResult is returned by every agent invocation (spec 3.2).
type TaskResult struct {
	Success          bool
	Message          string
	DurationS        float64
	PlanModified     bool
	RateLimited      bool
	RateLimitReset   *time.Time
	Usage            TaskUsage
}

// UsageReportEntry records one task's final usage in completion order, for
// the usage report JSON written alongside the plan (spec 4.1.1).
type UsageReportEntry struct {
	TaskID      string    `json:"task_id"`
	CompletedAt time.Time `json:"completed_at"`
	ModelUsed   string    `json:"model_used,omitempty"`
	Usage       TaskUsage `json:"usage"`
}

// UsageReport is the full per-plan usage report.
type UsageReport struct {
	PlanName   string              `json:"plan_name"`
	Entries    []UsageReportEntry  `json:"entries"`
	TotalCost  float64             `json:"total_cost_usd"`
}

// AddEntry appends a completed task's usage, keeping entries ordered by
// wall-clock completion time as required by spec 5 ("Ordering guarantees").
func (r *UsageReport) AddEntry(e UsageReportEntry) {
	r.Entries = append(r.Entries, e)
	r.TotalCost += e.Usage.TotalCostUSD
}

// SaveUsageReport writes the usage report JSON next to the plan.
func SaveUsageReport(path string, report *UsageReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal usage report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write usage report %s: %w", path, err)
	}
	return nil
}

// LoadUsageReport reads an existing usage report, or returns a fresh empty
// one if none exists yet.
func LoadUsageReport(path string, planName string) (*UsageReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &UsageReport{PlanName: planName}, nil
		}
		return nil, fmt.Errorf("read usage report %s: %w", path, err)
	}
	var report UsageReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse usage report %s: %w", path, err)
	}
	return &report, nil
}
