package coach

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/transcript"
)

var (
	disarmCues      = []string{"not sure if", "aren't sure", "not sure we", "might not be a fit", "may not be a fit"}
	problemCues     = []string{"challenge", "how has", "what's been", "what has been", "affecting", "frustrat"}
	consequenceCues = []string{"if you don't", "if that keeps", "six months", "6 months", "what happens if", "staying the same"}
	solutionCues    = []string{"why now", "priority", "why is that important", "what would it mean"}
	redFlagCues     = []string{"how are you doing", "is this a good time", "i'm calling from", "i am calling from", "calling on behalf"}
	closePattern    = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|tomorrow|next week|\d{1,2}(:\d{2})?\s?(am|pm))\b`)
)

// RubricEvaluator grades transcripts offline with keyword cues drawn from the
// golden rules. It backs the scripted provider mode where no text model is configured.
type RubricEvaluator struct{}

func NewRubricEvaluator() *RubricEvaluator { return &RubricEvaluator{} }

type rubricResult struct {
	interrupt   bool
	disarm      bool
	problem     bool
	consequence bool
	solution    bool
	close       bool
	redFlags    []string
	userTurns   int
	modelTurns  int
}

func (RubricEvaluator) Evaluate(ctx context.Context, msgs []transcript.Message, lead leads.Lead) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !transcript.UserSpoke(msgs) {
		return silentScorecard(lead), nil
	}
	r := analyze(msgs, lead)
	return r.scorecard(lead), nil
}

func analyze(msgs []transcript.Message, lead leads.Lead) rubricResult {
	var r rubricResult
	firstUser := true
	for _, m := range msgs {
		if m.Role == transcript.RoleModel {
			r.modelTurns++
			continue
		}
		r.userTurns++
		text := strings.ToLower(m.Content)
		if firstUser {
			firstUser = false
			opener := strings.TrimSpace(text)
			mentionsName := false
			for _, part := range strings.Fields(strings.ToLower(lead.Name)) {
				mentionsName = mentionsName || strings.Contains(opener, part)
			}
			r.interrupt = mentionsName && strings.HasSuffix(opener, "?") && len(strings.Fields(opener)) <= 4
		}
		r.disarm = r.disarm || containsAny(text, disarmCues)
		r.problem = r.problem || (containsAny(text, problemCues) && strings.Contains(text, "?"))
		r.consequence = r.consequence || containsAny(text, consequenceCues)
		r.solution = r.solution || containsAny(text, solutionCues)
		r.close = r.close || closePattern.MatchString(text)
		for _, cue := range redFlagCues {
			if strings.Contains(text, cue) {
				r.redFlags = append(r.redFlags, cue)
			}
		}
	}
	return r
}

func (r rubricResult) score() int {
	s := 0
	for _, hit := range []struct {
		ok     bool
		points int
	}{
		{r.interrupt, 2},
		{r.disarm, 2},
		{r.problem, 2},
		{r.consequence, 1},
		{r.solution, 1},
		{r.close, 2},
	} {
		if hit.ok {
			s += hit.points
		}
	}
	s -= 2 * len(r.redFlags)
	return max(0, min(10, s))
}

func (r rubricResult) scorecard(lead leads.Lead) string {
	score := r.score()
	var b strings.Builder
	fmt.Fprintf(&b, "1. OVERALL SCORE: %d/10\n\n", score)
	fmt.Fprintf(&b, "2. CALL SUMMARY: The call with %s ran %d caller turns and %d prospect turns. %s\n\n",
		lead.Name, r.userTurns, r.modelTurns, r.summaryClose())
	fmt.Fprintf(&b, "3. THE BRUTAL TRUTH: %s\n\n", r.verdict(score))
	fmt.Fprintf(&b, "4. TONALITY ANALYSIS: %s\n\n", r.tonality())
	fmt.Fprintf(&b, "5. THE PATTERN INTERRUPT: %s\n\n", pick(r.interrupt,
		"The opener was a short, questioning use of the prospect's name. That buys the first few seconds.",
		"The opener sounded like every other cold call. Lead with the prospect's name as a question."))
	fmt.Fprintf(&b, "6. RUBRIC ALIGNMENT: %s\n\n", r.alignment())
	fmt.Fprintf(&b, "7. OBJECTION HANDLING: %s\n\n", pick(r.disarm,
		"You lowered the defensive wall by admitting you might not be able to help.",
		"You never disarmed. Resistance was met with logic instead of empathy."))
	fmt.Fprintf(&b, "8. THE CLOSE: %s\n\n", pick(r.close,
		"You asked for a specific day and time. That is a commitment question.",
		"No specific time was proposed. Assume the next step and name a slot."))
	fmt.Fprintf(&b, "9. ACTIONABLE ROADMAP: %s", r.roadmap())
	return b.String()
}

func (r rubricResult) summaryClose() string {
	if r.close {
		return "The caller pushed for a concrete follow-up."
	}
	return "The call ended without a committed next step."
}

func (r rubricResult) verdict(score int) string {
	switch {
	case score >= 8:
		return "You sounded like a peer, not a vendor, and it showed."
	case score >= 5:
		return "Parts of this worked, but you still needed the sale more than they needed you."
	default:
		return "They knew you were selling within seconds and you gave them every reason to leave."
	}
}

func (r rubricResult) tonality() string {
	if len(r.redFlags) == 0 {
		return "No scripted pleasantries detected. Keep the pitch low and the pace unhurried."
	}
	return "Sales breath detected: " + strings.Join(r.redFlags, ", ") + ". These phrases trigger the defensive wall."
}

func (r rubricResult) alignment() string {
	var followed, broken []string
	rules := []struct {
		name string
		ok   bool
	}{
		{"Rule 2 (opener)", r.interrupt},
		{"Rule 3 (disarming)", r.disarm},
		{"Rule 4 (gap building)", r.problem},
		{"Rule 5 (consequence)", r.consequence},
		{"Rule 6 (solution awareness)", r.solution},
		{"Rule 7 (the close)", r.close},
	}
	for _, rule := range rules {
		if rule.ok {
			followed = append(followed, rule.name)
		} else {
			broken = append(broken, rule.name)
		}
	}
	out := "Followed: none."
	if len(followed) > 0 {
		out = "Followed: " + strings.Join(followed, ", ") + "."
	}
	if len(broken) > 0 {
		out += " Broken: " + strings.Join(broken, ", ") + "."
	}
	return out
}

func (r rubricResult) roadmap() string {
	var steps []string
	if !r.interrupt {
		steps = append(steps, "open with the prospect's name as a question")
	}
	if !r.disarm {
		steps = append(steps, "admit you are not sure you can help yet")
	}
	if !r.problem {
		steps = append(steps, "ask what has been the biggest challenge lately")
	}
	if !r.consequence {
		steps = append(steps, "explore what staying the same costs in six months")
	}
	if !r.close {
		steps = append(steps, "ask for a specific day and time")
	}
	if len(r.redFlags) > 0 {
		steps = append([]string{"drop the scripted pleasantries"}, steps...)
	}
	if len(steps) == 0 {
		return "Keep the same structure and tighten the pacing."
	}
	if len(steps) > 3 {
		steps = steps[:3]
	}
	for i := range steps {
		steps[i] = fmt.Sprintf("(%c) %s", 'a'+i, steps[i])
	}
	return strings.Join(steps, "; ") + "."
}

func silentScorecard(lead leads.Lead) string {
	return fmt.Sprintf(`1. OVERALL SCORE: 0/10

2. CALL SUMMARY: %s answered but the caller never spoke.

3. THE BRUTAL TRUTH: Silence is not a strategy.

4. TONALITY ANALYSIS: Nothing to analyze.

5. THE PATTERN INTERRUPT: None attempted.

6. RUBRIC ALIGNMENT: No rule was followed.

7. OBJECTION HANDLING: None.

8. THE CLOSE: None.

9. ACTIONABLE ROADMAP: Speak first, use their name as a question, and stay on the line.`, lead.Name)
}

func containsAny(text string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(text, c) {
			return true
		}
	}
	return false
}

func pick(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
