// Package agent resolves which role drives a task, loads that role's
// markdown profile, and assembles the agent invocation prompt (spec
// 4.1.4-4.1.5). Role markdown loading is grounded on the teacher's
// prompts.Get/processAtReferences embed-and-resolve idiom; frontmatter
// parsing follows state.ParsePlanFrontmatter's "split on the second ---"
// approach.
package agent

import "strings"

// Role is the resolved agent persona for a task.
type Role string

const (
	RolePlanner       Role = "planner"
	RoleReviewer      Role = "code-reviewer"
	RoleQAAuditor     Role = "qa-auditor"
	RoleSpecVerifier  Role = "spec-verifier"
	RoleUXReviewer    Role = "ux-reviewer"
	RoleFrontendCoder Role = "frontend-coder"
	RoleSystemsDesigner Role = "systems-designer"
	RoleCoder         Role = "coder"
)

// keywordTable is one ordered entry in the role-inference cascade. Every
// phrase must be multi-word (spec 4.1.4: "Single-word keywords are
// forbidden... 'code review pass' infers code-reviewer").
type keywordTable struct {
	role    Role
	phrases []string
}

var inferenceOrder = []keywordTable{
	{RolePlanner, []string{"create a plan", "design document", "break down the work", "produce a roadmap"}},
	{RoleReviewer, []string{"code review pass", "review the diff", "review this change", "peer review"}},
	{RoleQAAuditor, []string{"audit test coverage", "qa pass over", "verify test suite", "quality audit"}},
	{RoleSpecVerifier, []string{"verify against spec", "spec compliance check", "confirm matches specification"}},
	{RoleUXReviewer, []string{"review the ui", "ux review pass", "check the user flow", "review design mockup"}},
	{RoleFrontendCoder, []string{"implement review ui", "build the frontend", "implement the component", "wire up the page"}},
	{RoleSystemsDesigner, []string{"design the architecture", "design the data model", "propose system design"}},
}

// ResolveRole determines a task's agent role: the explicit field if set,
// otherwise inference by scanning name+description against the ordered
// keyword tables, falling back to RoleCoder (spec 4.1.4).
func ResolveRole(explicit, name, description string) Role {
	if explicit != "" {
		return Role(explicit)
	}

	haystack := strings.ToLower(name + " " + description)
	for _, table := range inferenceOrder {
		for _, phrase := range table.phrases {
			if strings.Contains(haystack, phrase) {
				return table.role
			}
		}
	}
	return RoleCoder
}
