package claims

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (string, func(string) string) {
	dir := t.TempDir()
	claimsPath := filepath.Join(dir, "claims.json")
	statusDir := func(workerID string) string {
		return filepath.Join(dir, "status-"+workerID+".json")
	}
	return claimsPath, statusDir
}

func TestCollectStaleDropsDeadWorkerClaims(t *testing.T) {
	claimsPath, statusDir := setup(t)
	now := time.Now()

	c := NewCollector(claimsPath, statusDir)
	require.NoError(t, c.Claim("worker-a", []string{"internal/guard/circuit.go"}))
	require.NoError(t, c.Claim("worker-b", []string{"internal/model/escalation.go"}))

	require.NoError(t, planio.SaveWorkerStatus(statusDir("worker-a"), &planio.WorkerStatus{
		WorkerID: "worker-a", LastHeartbeat: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, planio.SaveWorkerStatus(statusDir("worker-b"), &planio.WorkerStatus{
		WorkerID: "worker-b", LastHeartbeat: now,
	}))

	collected, err := c.CollectStale(now)
	require.NoError(t, err)
	assert.Equal(t, []string{"worker-a"}, collected)

	cf, err := planio.LoadClaims(claimsPath)
	require.NoError(t, err)
	assert.NotContains(t, cf.Claims, "internal/guard/circuit.go")
	assert.Contains(t, cf.Claims, "internal/model/escalation.go")
}

func TestCollectStaleTerminalWorkerCollected(t *testing.T) {
	claimsPath, statusDir := setup(t)
	now := time.Now()

	c := NewCollector(claimsPath, statusDir)
	require.NoError(t, c.Claim("worker-a", []string{"a.go"}))
	require.NoError(t, planio.SaveWorkerStatus(statusDir("worker-a"), &planio.WorkerStatus{
		WorkerID: "worker-a", LastHeartbeat: now, Terminal: true,
	}))

	collected, err := c.CollectStale(now)
	require.NoError(t, err)
	assert.Equal(t, []string{"worker-a"}, collected)
}

func TestReleaseDropsOnlyThatWorker(t *testing.T) {
	claimsPath, statusDir := setup(t)
	c := NewCollector(claimsPath, statusDir)

	require.NoError(t, c.Claim("worker-a", []string{"a.go"}))
	require.NoError(t, c.Claim("worker-b", []string{"b.go"}))

	require.NoError(t, c.Release("worker-a"))

	cf, err := planio.LoadClaims(claimsPath)
	require.NoError(t, err)
	assert.NotContains(t, cf.Claims, "a.go")
	assert.Contains(t, cf.Claims, "b.go")
}
