package planio

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPlan reads and parses a plan YAML file from disk.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	plan.Path = path

	if err := Validate(&plan); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}

	return &plan, nil
}

// SavePlan writes the plan back to its Path (or the given path if provided),
// preserving section/task ordering exactly as held in memory.
func SavePlan(plan *Plan, path string) error {
	if path == "" {
		path = plan.Path
	}
	if path == "" {
		return fmt.Errorf("save plan: no path set")
	}

	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan %s: %w", path, err)
	}
	return nil
}

// Validate enforces the invariants from spec 3.1: unique task ids, depends_on
// referencing only existing ids, and no dependency cycles (resolving the
// "eager cycle detection" open question: do it here, at load time, in
// addition to the lazy deadlock detector in planexec).
func Validate(p *Plan) error {
	seen := make(map[string]bool)
	for _, t := range p.AllTasks() {
		if t.ID == "" {
			return fmt.Errorf("task with empty id in plan %q", p.Meta.Name)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = true
	}

	for _, t := range p.AllTasks() {
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("task %q depends on unknown task %q", t.ID, dep)
			}
		}
	}

	if cyc := findCycle(p); cyc != nil {
		return fmt.Errorf("dependency cycle detected: %v", cyc)
	}

	return nil
}

// findCycle performs a DFS over the depends_on graph and returns the cycle
// path if one exists, nil otherwise.
func findCycle(p *Plan) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	byID := make(map[string]*Task)
	for _, t := range p.AllTasks() {
		byID[t.ID] = t
	}

	color := make(map[string]int)
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)

		for _, dep := range byID[id].DependsOn {
			switch color[dep] {
			case gray:
				// Found the back-edge; extract the cycle from path.
				for i, p := range path {
					if p == dep {
						cycle = append(append([]string{}, path[i:]...), dep)
						return true
					}
				}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, t := range p.AllTasks() {
		if color[t.ID] == white {
			if visit(t.ID) {
				return cycle
			}
		}
	}
	return nil
}
