package guard

import (
	"fmt"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// BudgetGuard wraps the plan's usage tracker and rejects further task
// execution once cumulative cost reaches the effective limit (spec 4.1.9).
type BudgetGuard struct {
	cfg planio.BudgetConfig
}

// NewBudgetGuard builds a guard from the plan's meta.budget block. A nil
// config means no budget was configured; EffectiveLimit then reports
// unlimited.
func NewBudgetGuard(cfg *planio.BudgetConfig) *BudgetGuard {
	if cfg == nil {
		return &BudgetGuard{}
	}
	return &BudgetGuard{cfg: *cfg}
}

// EffectiveLimit computes min(quota_ceiling * max_quota_percent/100,
// quota_ceiling - reserved_budget). quota_ceiling = 0 means unlimited,
// reported through the second return value (unlimited=true, limit 0).
func (g *BudgetGuard) EffectiveLimit() (limit float64, unlimited bool) {
	if g.cfg.QuotaCeilingUSD <= 0 {
		return 0, true
	}

	pctLimit := g.cfg.QuotaCeilingUSD
	if g.cfg.MaxQuotaPercent > 0 {
		pctLimit = g.cfg.QuotaCeilingUSD * g.cfg.MaxQuotaPercent / 100.0
	}
	reservedLimit := g.cfg.QuotaCeilingUSD - g.cfg.ReservedBudgetUSD

	limit = pctLimit
	if reservedLimit < limit {
		limit = reservedLimit
	}
	return limit, false
}

// CanProceed reports whether the plan may execute another task given its
// cumulative total_cost_usd so far.
func (g *BudgetGuard) CanProceed(totalCostUSD float64) bool {
	limit, unlimited := g.EffectiveLimit()
	if unlimited {
		return true
	}
	return totalCostUSD < limit
}

// PauseReason formats the message recorded on meta.pause_reason when the
// guard rejects a task (spec 4.1.9: "write a pause reason").
func (g *BudgetGuard) PauseReason(totalCostUSD float64) string {
	limit, unlimited := g.EffectiveLimit()
	if unlimited {
		return "budget paused with no ceiling configured"
	}
	return fmt.Sprintf("cumulative cost $%.2f reached effective limit $%.2f", totalCostUSD, limit)
}
