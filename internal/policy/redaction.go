// Package policy holds the privacy rules applied before call content is logged.
package policy

import (
	"regexp"

	"github.com/ent0n29/coldcall/internal/transcript"
)

type rule struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: card numbers must be masked before the looser phone pattern sees them.
var rules = []rule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// RedactPII masks emails, card numbers and phone numbers a trainee may say on a call.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// RedactTranscript returns a redacted copy of msgs and how many messages changed.
func RedactTranscript(msgs []transcript.Message) ([]transcript.Message, int) {
	out := transcript.Clone(msgs)
	n := 0
	for i := range out {
		var changed bool
		out[i].Content, changed = RedactPII(out[i].Content)
		if changed {
			n++
		}
	}
	return out, n
}
