package guard

import (
	"testing"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/stretchr/testify/assert"
)

func TestBudgetGuardUnlimitedWhenNoCeiling(t *testing.T) {
	g := NewBudgetGuard(nil)
	assert.True(t, g.CanProceed(1_000_000))
}

func TestBudgetGuardEffectiveLimitPrefersTighterBound(t *testing.T) {
	cases := []struct {
		name     string
		cfg      planio.BudgetConfig
		wantLim  float64
	}{
		{
			name:    "percent tighter than reserved",
			cfg:     planio.BudgetConfig{QuotaCeilingUSD: 100, MaxQuotaPercent: 50, ReservedBudgetUSD: 10},
			wantLim: 50,
		},
		{
			name:    "reserved tighter than percent",
			cfg:     planio.BudgetConfig{QuotaCeilingUSD: 100, MaxQuotaPercent: 90, ReservedBudgetUSD: 40},
			wantLim: 60,
		},
		{
			name:    "no percent set defaults to full ceiling",
			cfg:     planio.BudgetConfig{QuotaCeilingUSD: 100, ReservedBudgetUSD: 20},
			wantLim: 80,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewBudgetGuard(&tc.cfg)
			limit, unlimited := g.EffectiveLimit()
			assert.False(t, unlimited)
			assert.InDelta(t, tc.wantLim, limit, 1e-9)
		})
	}
}

func TestBudgetGuardRejectsAtLimit(t *testing.T) {
	cfg := planio.BudgetConfig{QuotaCeilingUSD: 10, MaxQuotaPercent: 100}
	g := NewBudgetGuard(&cfg)

	assert.True(t, g.CanProceed(9.99))
	assert.False(t, g.CanProceed(10))
	assert.NotEmpty(t, g.PauseReason(10))
}
