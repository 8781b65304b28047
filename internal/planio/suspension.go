package planio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SuspensionMarker represents a work item paused pending a human reply in
// chat (spec 3.6). Presence of this file (without Answer set) makes the
// referenced work item invisible to backlog scans.
type SuspensionMarker struct {
	Slug            string    `json:"slug"`
	ItemType        string    `json:"item_type"`
	ItemPath        string    `json:"item_path"`
	PlanPath        string    `json:"plan_path"`
	TaskID          string    `json:"task_id"`
	Question        string    `json:"question"`
	Context         string    `json:"context"`
	ChannelID       string    `json:"channel_id,omitempty"`
	ThreadTS        string    `json:"thread_ts,omitempty"`
	SuspendedAt     time.Time `json:"suspended_at"`
	TimeoutMinutes  int       `json:"timeout_minutes"`
	Answer          string    `json:"answer,omitempty"`
}

// IsAnswered reports whether a human has replied, i.e. the item should be
// reinstated on the next backlog scan cycle.
func (m *SuspensionMarker) IsAnswered() bool {
	return m != nil && m.Answer != ""
}

// LoadSuspensionMarker reads a suspension marker file; returns (nil, nil) if
// it does not exist.
func LoadSuspensionMarker(path string) (*SuspensionMarker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read suspension marker %s: %w", path, err)
	}
	var m SuspensionMarker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse suspension marker %s: %w", path, err)
	}
	return &m, nil
}

// SaveSuspensionMarker writes a suspension marker file, creating its parent
// directory if needed.
func SaveSuspensionMarker(path string, m *SuspensionMarker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal suspension marker: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create suspension marker dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write suspension marker %s: %w", path, err)
	}
	return nil
}

// RemoveSuspensionMarker deletes a marker once its item has been reinstated.
func RemoveSuspensionMarker(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove suspension marker %s: %w", path, err)
	}
	return nil
}
