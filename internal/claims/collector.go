// Package claims collects stale file claims and worker heartbeats before a
// parallel task group starts (spec 3.5), building on planio's claims/status
// JSON types the way jaakkos-stringwork's worker_manager.go collects stale
// worker registrations before reassigning work.
package claims

import (
	"time"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// DefaultMaxAge is the staleness threshold from spec 3.5 ("default 60 min").
const DefaultMaxAge = 60 * time.Minute

// Collector reads the shared claims file and per-worker status files, and
// removes entries owned by stale or terminal workers.
type Collector struct {
	ClaimsPath string
	StatusDir  func(workerID string) string
	MaxAge     time.Duration
}

// NewCollector builds a Collector with the spec's default max age.
func NewCollector(claimsPath string, statusDir func(workerID string) string) *Collector {
	return &Collector{ClaimsPath: claimsPath, StatusDir: statusDir, MaxAge: DefaultMaxAge}
}

// CollectStale loads the claims file, drops any claim whose owning worker's
// status is stale or terminal (or missing entirely), and persists the
// cleaned claims file. Returns the set of worker ids that were collected.
func (c *Collector) CollectStale(now time.Time) ([]string, error) {
	cf, err := planio.LoadClaims(c.ClaimsPath)
	if err != nil {
		return nil, err
	}

	staleWorkers := make(map[string]bool)
	checked := make(map[string]bool)

	for _, workerID := range cf.Claims {
		if checked[workerID] {
			continue
		}
		checked[workerID] = true

		ws, err := planio.LoadWorkerStatus(c.StatusDir(workerID))
		if err != nil {
			return nil, err
		}
		if ws.IsStale(c.MaxAge, now) {
			staleWorkers[workerID] = true
		}
	}

	if len(staleWorkers) == 0 {
		return nil, nil
	}

	cleaned := make(map[string]string, len(cf.Claims))
	for path, workerID := range cf.Claims {
		if !staleWorkers[workerID] {
			cleaned[path] = workerID
		}
	}
	cf.Claims = cleaned

	if err := planio.SaveClaims(c.ClaimsPath, cf); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(staleWorkers))
	for w := range staleWorkers {
		out = append(out, w)
	}
	return out, nil
}

// Claim assigns a set of file paths to a worker, merging into the existing
// claims file. Later callers for the same path overwrite the earlier owner;
// the conflict check in worktree.HasConflict is what actually prevents two
// live workers from touching the same file.
func (c *Collector) Claim(workerID string, paths []string) error {
	cf, err := planio.LoadClaims(c.ClaimsPath)
	if err != nil {
		return err
	}
	for _, p := range paths {
		cf.Claims[p] = workerID
	}
	return planio.SaveClaims(c.ClaimsPath, cf)
}

// Release drops every claim owned by workerID, called once a worker's task
// reaches a terminal status.
func (c *Collector) Release(workerID string) error {
	cf, err := planio.LoadClaims(c.ClaimsPath)
	if err != nil {
		return err
	}
	cleaned := make(map[string]string, len(cf.Claims))
	for path, owner := range cf.Claims {
		if owner != workerID {
			cleaned[path] = owner
		}
	}
	cf.Claims = cleaned
	return planio.SaveClaims(c.ClaimsPath, cf)
}

// Heartbeat updates a worker's status file with the current instant.
func Heartbeat(statusPath, workerID, taskID string, now time.Time, terminal bool) error {
	return planio.SaveWorkerStatus(statusPath, &planio.WorkerStatus{
		WorkerID:      workerID,
		TaskID:        taskID,
		LastHeartbeat: now,
		Terminal:      terminal,
	})
}
