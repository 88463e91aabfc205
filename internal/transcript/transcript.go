package transcript

import (
	"strings"
)

// Role identifies which side of the call produced a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one finalized conversational turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Clone returns an independent copy of msgs. A nil input yields an empty, non-nil slice.
func Clone(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Format renders msgs as role-tagged lines ("USER: ...", "MODEL: ...").
func Format(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.ToUpper(string(m.Role)))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// UserSpoke reports whether any user turn carries non-blank content.
func UserSpoke(msgs []Message) bool {
	for _, m := range msgs {
		if m.Role == RoleUser && strings.TrimSpace(m.Content) != "" {
			return true
		}
	}
	return false
}
