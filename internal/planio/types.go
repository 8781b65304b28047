// Package planio defines the on-disk plan/task data model (spec section 3.1-3.2)
// and reads/writes it as YAML, mirroring the front-matter parsing idiom the
// teacher uses for PLAN.md but applied to a whole document.
package planio

import "time"

// TaskStatus is the lifecycle state of a single task within a plan.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskSkipped    TaskStatus = "skipped"
	TaskSuspended  TaskStatus = "suspended"
)

// IsTerminal reports whether a task in this status will never execute again.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped:
		return true
	default:
		return false
	}
}

// PlanMetaStatus is the terminal/paused state recorded on the plan as a whole.
type PlanMetaStatus string

const (
	PlanStatusNone        PlanMetaStatus = ""
	PlanStatusPausedQuota PlanMetaStatus = "paused_quota"
	PlanStatusFailed      PlanMetaStatus = "failed"
)

// BudgetConfig controls the budget guard (spec 4.1.9).
type BudgetConfig struct {
	MaxQuotaPercent  float64 `yaml:"max_quota_percent,omitempty"`
	QuotaCeilingUSD  float64 `yaml:"quota_ceiling_usd,omitempty"`
	ReservedBudgetUSD float64 `yaml:"reserved_budget_usd,omitempty"`
}

// ModelEscalationConfig controls the model escalation ladder (spec 4.1.10).
type ModelEscalationConfig struct {
	Enabled         bool   `yaml:"enabled"`
	EscalateAfter   int    `yaml:"escalate_after,omitempty"`
	MaxModel        string `yaml:"max_model,omitempty"`
	ValidationModel string `yaml:"validation_model,omitempty"`
	StartingModel   string `yaml:"starting_model,omitempty"`
}

// ValidationConfig controls post-task validator dispatch (spec 4.1.12).
type ValidationConfig struct {
	Enabled             bool     `yaml:"enabled"`
	RunAfter            []string `yaml:"run_after,omitempty"`
	Validators          []string `yaml:"validators,omitempty"`
	MaxValidationAttempts int    `yaml:"max_validation_attempts,omitempty"`
}

// Meta is the plan's meta block (spec 3.1).
type Meta struct {
	Name            string                 `yaml:"name"`
	PlanDoc         string                 `yaml:"plan_doc,omitempty"`
	Created         time.Time              `yaml:"created"`
	Status          PlanMetaStatus         `yaml:"status,omitempty"`
	PauseReason     string                 `yaml:"pause_reason,omitempty"`
	Budget          *BudgetConfig          `yaml:"budget,omitempty"`
	ModelEscalation *ModelEscalationConfig `yaml:"model_escalation,omitempty"`
	Validation      *ValidationConfig      `yaml:"validation,omitempty"`
	StepNotifications *bool                `yaml:"step_notifications,omitempty"`
	JudgeModel      string                 `yaml:"judge_model,omitempty"`
}

// TaskUsage is the accounting block returned by every agent invocation
// (spec 3.2). TotalCostUSD is authoritative from the agent CLI and must
// never be recomputed from the token counts.
type TaskUsage struct {
	InputTokens      int     `yaml:"input_tokens,omitempty" json:"input_tokens,omitempty"`
	OutputTokens     int     `yaml:"output_tokens,omitempty" json:"output_tokens,omitempty"`
	CacheReadTokens  int     `yaml:"cache_read_tokens,omitempty" json:"cache_read_tokens,omitempty"`
	CacheCreateTokens int    `yaml:"cache_create_tokens,omitempty" json:"cache_create_tokens,omitempty"`
	TotalCostUSD     float64 `yaml:"total_cost_usd,omitempty" json:"total_cost_usd,omitempty"`
	NumTurns         int     `yaml:"num_turns,omitempty" json:"num_turns,omitempty"`
	DurationAPIMs    int64   `yaml:"duration_api_ms,omitempty" json:"duration_api_ms,omitempty"`
}

// Add accumulates usage from another invocation into this one.
func (u *TaskUsage) Add(o TaskUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheReadTokens += o.CacheReadTokens
	u.CacheCreateTokens += o.CacheCreateTokens
	u.TotalCostUSD += o.TotalCostUSD
	u.NumTurns += o.NumTurns
	u.DurationAPIMs += o.DurationAPIMs
}

// ValidationFinding is one line of a validator's findings list (spec 4.1.12).
type ValidationFinding struct {
	Verdict     string `yaml:"verdict"` // PASS, WARN, FAIL
	Description string `yaml:"description"`
}

// Task is a single atomic unit of agent work (spec 3.1).
type Task struct {
	ID                 string              `yaml:"id"`
	Name               string              `yaml:"name"`
	Description        string              `yaml:"description"`
	Status             TaskStatus          `yaml:"status"`
	Attempts           int                 `yaml:"attempts"`
	MaxAttempts        int                 `yaml:"max_attempts"`
	DependsOn          []string            `yaml:"depends_on,omitempty"`
	ParallelGroup      string              `yaml:"parallel_group,omitempty"`
	ExclusiveResources []string            `yaml:"exclusive_resources,omitempty"`
	Agent              string              `yaml:"agent,omitempty"`
	ValidationFindings []ValidationFinding `yaml:"validation_findings,omitempty"`
	ModelUsed          string              `yaml:"model_used,omitempty"`
	Usage              *TaskUsage          `yaml:"usage,omitempty"`
}

// Section is an ordered group of tasks within a plan.
type Section struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Status string `yaml:"status,omitempty"`
	Tasks  []Task `yaml:"tasks"`
}

// Plan is the full YAML document described in spec 3.1.
type Plan struct {
	Meta     Meta      `yaml:"meta"`
	Sections []Section `yaml:"sections"`

	// Path is the file this plan was loaded from; not serialized.
	Path string `yaml:"-"`
}

// AllTasks returns every task across every section, plan order preserved.
func (p *Plan) AllTasks() []*Task {
	var out []*Task
	for si := range p.Sections {
		sec := &p.Sections[si]
		for ti := range sec.Tasks {
			out = append(out, &sec.Tasks[ti])
		}
	}
	return out
}

// FindTask returns the task with the given id, or nil.
func (p *Plan) FindTask(id string) *Task {
	for _, t := range p.AllTasks() {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// TotalCost sums TotalCostUSD across every task that has recorded usage.
func (p *Plan) TotalCost() float64 {
	var total float64
	for _, t := range p.AllTasks() {
		if t.Usage != nil {
			total += t.Usage.TotalCostUSD
		}
	}
	return total
}

// IsFailed reports whether the plan is in the terminal failed state (spec 3.1:
// "A plan with meta.status = failed is terminal and must not be resumed").
func (p *Plan) IsFailed() bool {
	return p.Meta.Status == PlanStatusFailed
}

// AllTerminal reports whether every task in the plan is in a terminal status.
func (p *Plan) AllTerminal() bool {
	for _, t := range p.AllTasks() {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}
