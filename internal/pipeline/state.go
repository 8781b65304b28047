package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// trackingState persists the completed/failed item slug sets across process
// restarts (spec 4.2.1 step 4, spec 4.2.3: "exclude any item whose prior
// process_item returned success even if the backlog file unexpectedly
// persists"), grounded on internal/planio's atomic-write JSON idiom
// (claims.go's LoadClaims/SaveClaims).
type trackingState struct {
	CompletedSlugs map[string]bool `json:"completed_slugs"`
	FailedSlugs    map[string]bool `json:"failed_slugs"`
}

func loadTrackingState(path string) (*trackingState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &trackingState{CompletedSlugs: map[string]bool{}, FailedSlugs: map[string]bool{}}, nil
		}
		return nil, fmt.Errorf("read pipeline state %s: %w", path, err)
	}
	var s trackingState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse pipeline state %s: %w", path, err)
	}
	if s.CompletedSlugs == nil {
		s.CompletedSlugs = map[string]bool{}
	}
	if s.FailedSlugs == nil {
		s.FailedSlugs = map[string]bool{}
	}
	return &s, nil
}

func saveTrackingState(path string, s *trackingState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pipeline state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write pipeline state %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename pipeline state into place: %w", err)
	}
	return nil
}

func (s *trackingState) markCompleted(slug string) {
	delete(s.FailedSlugs, slug)
	s.CompletedSlugs[slug] = true
}

func (s *trackingState) markFailed(slug string) {
	s.FailedSlugs[slug] = true
}

func (s *trackingState) isDone(slug string) bool {
	return s.CompletedSlugs[slug] || s.FailedSlugs[slug]
}
