package bridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcessSkipsSelfAuthoredMessages(t *testing.T) {
	id := Identity{Names: []string{"ralph"}}
	msg := Message{Text: "done with the task\n\n_— ralph_"}
	accept, reason := id.ShouldProcess(msg)
	assert.False(t, accept)
	assert.Equal(t, "self-authored", reason)
}

func TestShouldProcessAcceptsBroadcast(t *testing.T) {
	id := Identity{Names: []string{"ralph"}}
	accept, reason := id.ShouldProcess(Message{Text: "feature: add dark mode"})
	assert.True(t, accept)
	assert.Equal(t, "broadcast", reason)
}

func TestShouldProcessAcceptsExplicitAddress(t *testing.T) {
	id := Identity{Names: []string{"ralph"}}
	accept, reason := id.ShouldProcess(Message{Text: "@ralph please stop"})
	assert.True(t, accept)
	assert.Equal(t, "addressed to us", reason)
}

func TestShouldProcessSkipsMessageAddressedElsewhere(t *testing.T) {
	id := Identity{Names: []string{"ralph"}}
	accept, reason := id.ShouldProcess(Message{Text: "@otherbot please stop"})
	assert.False(t, accept)
	assert.Equal(t, "addressed elsewhere", reason)
}

func TestRoleForChannelDerivesSuffix(t *testing.T) {
	role, ok := RoleForChannel("ralph-features", "ralph")
	assert.True(t, ok)
	assert.Equal(t, "features", role)
}

func TestRoleForChannelRejectsUnknownSuffix(t *testing.T) {
	_, ok := RoleForChannel("ralph-random", "ralph")
	assert.False(t, ok)
}

func TestRoleForChannelRejectsWrongPrefix(t *testing.T) {
	_, ok := RoleForChannel("other-features", "ralph")
	assert.False(t, ok)
}

func TestNewIdentityKeepsConfiguredNames(t *testing.T) {
	id := NewIdentity([]string{"ralph-prod"})
	assert.Equal(t, []string{"ralph-prod"}, id.Names)
}

func TestNewIdentityGeneratesTagWhenUnconfigured(t *testing.T) {
	id := NewIdentity(nil)
	require := assert.New(t)
	require.Len(id.Names, 1)
	require.True(strings.HasPrefix(id.Names[0], "ralph-"))
}
