package planexec

import (
	"testing"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/stretchr/testify/assert"
)

func TestClassifyAttemptSucceeded(t *testing.T) {
	hs := &planio.Handshake{TaskID: "t1", Status: planio.HandshakeCompleted, PlanModified: true}
	out := classifyAttempt(&llm.ResultEvent{TotalCostUSD: 0.1}, "all good", nil, hs, "t1", time.Now())
	assert.True(t, out.Succeeded)
	assert.False(t, out.Failed)
	assert.InDelta(t, 0.1, out.Usage.TotalCostUSD, 1e-9)
}

func TestClassifyAttemptMissingHandshakeIsFailure(t *testing.T) {
	out := classifyAttempt(nil, "", assertError{}, nil, "t1", time.Now())
	assert.True(t, out.Failed)
}

func TestClassifyAttemptMismatchedHandshakeIsFailure(t *testing.T) {
	hs := &planio.Handshake{TaskID: "other", Status: planio.HandshakeCompleted}
	out := classifyAttempt(nil, "", nil, hs, "t1", time.Now())
	assert.True(t, out.Failed)
}

func TestClassifyAttemptRateLimited(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	out := classifyAttempt(nil, "You've hit your limit - resets Feb 9 at 6pm (UTC)", assertError{}, nil, "t1", now)
	assert.True(t, out.RateLimited)
	assert.Equal(t, 2026, out.RateLimitReset.Year())
}

func TestClassifyAttemptSuspended(t *testing.T) {
	hs := &planio.Handshake{TaskID: "t1", Status: planio.HandshakeSuspended}
	out := classifyAttempt(nil, "", nil, hs, "t1", time.Now())
	assert.True(t, out.Suspended)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
