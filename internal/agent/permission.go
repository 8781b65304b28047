package agent

// PermissionProfile is one of the four fixed CLI permission shapes
// (spec 4.1.5).
type PermissionProfile string

const (
	ProfileReadOnly     PermissionProfile = "read-only"
	ProfileWrite        PermissionProfile = "write"
	ProfileVerification PermissionProfile = "verification"
	ProfileDesign       PermissionProfile = "design"
)

// profileByRole maps each resolved role to its permission profile.
var profileByRole = map[Role]PermissionProfile{
	RolePlanner:         ProfileDesign,
	RoleReviewer:        ProfileReadOnly,
	RoleQAAuditor:       ProfileVerification,
	RoleSpecVerifier:    ProfileVerification,
	RoleUXReviewer:      ProfileReadOnly,
	RoleFrontendCoder:   ProfileWrite,
	RoleSystemsDesigner: ProfileDesign,
	RoleCoder:           ProfileWrite,
}

// ProfileFor returns the permission profile for a role, defaulting to write
// for any unrecognized custom role name.
func ProfileFor(role Role) PermissionProfile {
	if p, ok := profileByRole[role]; ok {
		return p
	}
	return ProfileWrite
}

// AllowedTools returns the `--allowedTools` flag value for a profile
// (spec 4.1.5).
func AllowedTools(profile PermissionProfile) []string {
	switch profile {
	case ProfileReadOnly:
		return []string{"Read", "Grep", "Glob", "Bash(read:*)"}
	case ProfileWrite:
		return []string{"Read", "Grep", "Glob", "Edit", "Write", "Bash(go build:*)", "Bash(go test:*)", "Bash(npm run:*)", "Bash(npm test:*)"}
	case ProfileVerification:
		return []string{"Read", "Grep", "Glob", "Bash(go test:*)", "Bash(npm test:*)"}
	case ProfileDesign:
		return []string{"Read", "Grep", "Glob", "Write(docs/plans/*)", "Write(docs/designs/*)"}
	default:
		return []string{"Read", "Grep", "Glob"}
	}
}

// InvocationFlags are the CLI flags a permission profile contributes to an
// agent subprocess invocation, shared across every profile per spec 4.1.5:
// "Both axes — tool list and approval mode — must be set".
type InvocationFlags struct {
	AllowedTools   []string
	AddDir         string
	PermissionMode string
}

// Flags builds the flag set for a profile. skipPermissions implements the
// spec's debugging fallback to --dangerously-skip-permissions.
func Flags(profile PermissionProfile, projectRoot string, skipPermissions bool) InvocationFlags {
	mode := "acceptEdits"
	if skipPermissions {
		mode = "dangerously-skip-permissions"
	}
	return InvocationFlags{
		AllowedTools:   AllowedTools(profile),
		AddDir:         projectRoot,
		PermissionMode: mode,
	}
}
