package bridge

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Identity is the signature this orchestrator instance stamps on its own
// outbound messages and filters its own inbound processing by (spec.md
// §4.3.2).
type Identity struct {
	Names []string
}

// NewIdentity builds an Identity from configured names, falling back to a
// random per-process instance tag when none are configured so two
// orchestrator instances running against the same project (e.g. a primary
// and a hot-reloaded replacement mid-handoff) never mistake each other's
// outbound messages for their own (spec.md §4.3.2: "signs outbound messages
// with an agent identity").
func NewIdentity(configured []string) Identity {
	if len(configured) > 0 {
		return Identity{Names: configured}
	}
	return Identity{Names: []string{"ralph-" + uuid.NewString()[:8]}}
}

var addresseePattern = regexp.MustCompile(`@(\S+)`)

// Sign appends an identity tag to an outbound message so other instances
// (and this one, on the next poll) can recognize it as self-authored.
func (id Identity) Sign(text string) string {
	if len(id.Names) == 0 {
		return text
	}
	return text + "\n\n_— " + id.Names[0] + "_"
}

// signedBy reports whether text carries this identity's signature.
func (id Identity) signedBy(text string) bool {
	for _, n := range id.Names {
		if strings.Contains(text, "— "+n) {
			return true
		}
	}
	return false
}

// addressees extracts every "@name" token from a message body.
func addressees(text string) []string {
	matches := addresseePattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// addressedToUs reports whether our identity is named among the message's
// addressees, case-insensitively.
func (id Identity) addressedToUs(addressees []string) bool {
	for _, a := range addressees {
		for _, n := range id.Names {
			if strings.EqualFold(a, n) {
				return true
			}
		}
	}
	return false
}

// ShouldProcess implements the addressing filter of spec.md §4.3.2: skip
// self-authored messages, skip messages addressed to someone else, accept
// explicit addresses to us, accept broadcasts (no addressees named).
// reason is always populated so the caller can log the filter decision in
// verbose mode.
func (id Identity) ShouldProcess(msg Message) (accept bool, reason string) {
	if id.signedBy(msg.Text) {
		return false, "self-authored"
	}
	addrs := addressees(msg.Text)
	if len(addrs) == 0 {
		return true, "broadcast"
	}
	if id.addressedToUs(addrs) {
		return true, "addressed to us"
	}
	return false, "addressed elsewhere"
}

// RoleForChannel derives a channel's role from its prefix-stripped suffix
// (spec.md §4.3.2: "a role is derived from the channel suffix").
func RoleForChannel(channelName, prefix string) (role string, ok bool) {
	suffix := strings.TrimPrefix(channelName, prefix+"-")
	if suffix == channelName {
		return "", false
	}
	switch suffix {
	case "notifications", "features", "defects", "questions", "reports":
		return suffix, true
	default:
		return "", false
	}
}
