package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRoleExplicitWins(t *testing.T) {
	assert.Equal(t, Role("custom-role"), ResolveRole("custom-role", "anything", "anything"))
}

func TestResolveRoleInfersFromPhrase(t *testing.T) {
	cases := []struct {
		name        string
		description string
		want        Role
	}{
		{"implement review UI", "build the component", RoleFrontendCoder},
		{"code review pass", "look over the diff", RoleReviewer},
		{"Create a plan", "for the new feature", RolePlanner},
		{"add a helper", "no special phrase here", RoleCoder},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveRole("", tc.name, tc.description)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveRoleRejectsSingleWordAmbiguity(t *testing.T) {
	// "review" alone must not trigger reviewer inference; only the full
	// multi-word phrase does.
	got := ResolveRole("", "review", "some task about reviewing things generally")
	assert.Equal(t, RoleCoder, got)
}
