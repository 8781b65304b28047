package planio

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ClaimsFile maps file paths to the worker id that currently owns them
// (spec 3.5), used to avoid two parallel worktree workers touching the same
// file outside the conflict-detection pass.
type ClaimsFile struct {
	Claims map[string]string `json:"claims"` // path -> worker id
}

// WorkerStatus is a worker's periodic heartbeat file (spec 3.5).
type WorkerStatus struct {
	WorkerID      string    `json:"worker_id"`
	TaskID        string    `json:"task_id"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Terminal      bool      `json:"terminal"`
}

// LoadClaims reads the claims file, tolerating a missing file (no claims yet).
func LoadClaims(path string) (*ClaimsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClaimsFile{Claims: make(map[string]string)}, nil
		}
		return nil, fmt.Errorf("read claims %s: %w", path, err)
	}
	var cf ClaimsFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse claims %s: %w", path, err)
	}
	if cf.Claims == nil {
		cf.Claims = make(map[string]string)
	}
	return &cf, nil
}

// SaveClaims writes the claims file atomically via a rename, satisfying the
// "read-check-write with an exclusive filesystem lock or atomic rename"
// requirement of spec 5.
func SaveClaims(path string, cf *ClaimsFile) error {
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write claims temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename claims %s: %w", path, err)
	}
	return nil
}

// LoadWorkerStatus reads a per-worker heartbeat status file.
func LoadWorkerStatus(path string) (*WorkerStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read worker status %s: %w", path, err)
	}
	var ws WorkerStatus
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("parse worker status %s: %w", path, err)
	}
	return &ws, nil
}

// SaveWorkerStatus writes a worker's heartbeat status file.
func SaveWorkerStatus(path string, ws *WorkerStatus) error {
	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal worker status: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write worker status %s: %w", path, err)
	}
	return nil
}

// IsStale reports whether a claim/status is old enough to be collected as
// stale before a parallel group starts (spec 3.5: default 60 minutes, or the
// owner's status is terminal).
func (ws *WorkerStatus) IsStale(maxAge time.Duration, now time.Time) bool {
	if ws == nil {
		return true
	}
	if ws.Terminal {
		return true
	}
	return now.Sub(ws.LastHeartbeat) > maxAge
}
