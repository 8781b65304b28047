package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileForKnownRoles(t *testing.T) {
	assert.Equal(t, ProfileDesign, ProfileFor(RolePlanner))
	assert.Equal(t, ProfileReadOnly, ProfileFor(RoleReviewer))
	assert.Equal(t, ProfileVerification, ProfileFor(RoleQAAuditor))
	assert.Equal(t, ProfileWrite, ProfileFor(RoleCoder))
}

func TestProfileForUnknownRoleDefaultsToWrite(t *testing.T) {
	assert.Equal(t, ProfileWrite, ProfileFor(Role("something-custom")))
}

func TestFlagsSetsAcceptEditsByDefault(t *testing.T) {
	f := Flags(ProfileWrite, "/repo", false)
	assert.Equal(t, "acceptEdits", f.PermissionMode)
	assert.Equal(t, "/repo", f.AddDir)
	assert.NotEmpty(t, f.AllowedTools)
}

func TestFlagsSkipPermissionsDebugFallback(t *testing.T) {
	f := Flags(ProfileReadOnly, "/repo", true)
	assert.Equal(t, "dangerously-skip-permissions", f.PermissionMode)
}
