package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker()
	now := time.Now()

	assert.True(t, cb.CanProceed(now))

	cb.RecordFailure(now)
	cb.RecordFailure(now)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.True(t, cb.CanProceed(now))

	cb.RecordFailure(now)
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.CanProceed(now))
}

func TestCircuitBreakerSelfCloses(t *testing.T) {
	cb := NewCircuitBreaker()
	now := time.Now()

	cb.RecordFailure(now)
	cb.RecordFailure(now)
	cb.RecordFailure(now)
	assert.False(t, cb.CanProceed(now))

	later := now.Add(cb.ResetTimeout + time.Second)
	assert.True(t, cb.CanProceed(later))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerSuccessResets(t *testing.T) {
	cb := NewCircuitBreaker()
	now := time.Now()

	cb.RecordFailure(now)
	cb.RecordFailure(now)
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.ConsecutiveFailures())

	cb.RecordFailure(now)
	cb.RecordFailure(now)
	assert.True(t, cb.CanProceed(now))
}
