package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/transcript"
)

func testLead() leads.Lead {
	return leads.Lead{
		ID:         "lead-7",
		Name:       "Linda Moore",
		Industry:   leads.IndustrySolar,
		Persona:    "The Risk-Averse Bureaucrat. Terrified of making a mistake.",
		Context:    "Utility rates just hiked by 15%.",
		Difficulty: leads.DifficultyEasy,
	}
}

func TestStripTerminationPhrase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"...not interested, goodbye. End Scene", "...not interested, goodbye."},
		{"Bye. end scene", "Bye."},
		{"END SCENE", ""},
		{"  nothing to strip  ", "nothing to strip"},
		{"End Scene and End scene", "and"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StripTerminationPhrase(tc.in), tc.in)
	}
}

func TestContainsTerminationPhrase(t *testing.T) {
	assert.True(t, ContainsTerminationPhrase("goodbye. eNd ScEnE"))
	assert.False(t, ContainsTerminationPhrase("the end of the scene"))
}

func TestStripFormatting(t *testing.T) {
	assert.Equal(t, "1. OVERALL SCORE: 4/10", StripFormatting("**1. OVERALL SCORE:** 4/10*"))
}

func TestProspectInstructionEmbedsLeadAndVoice(t *testing.T) {
	lead := testLead()
	voice := leads.VoiceSettings{Pitch: leads.PitchDeep, Speed: leads.SpeedFast, Accent: leads.AccentNewYork}

	got := ProspectInstruction(lead, voice)
	for _, want := range []string{
		"IDENTITY: Linda Moore, Solar Energy (B2C).",
		"PROFILE: " + lead.Persona,
		"CONTEXT: " + lead.Context,
		"Tone/Pitch: Deep.",
		"Pacing: Fast.",
		"Dialect/Accent: New York.",
		`"Moore speaking."`,
		`say the exact phrase "End Scene"`,
		"DO NOT USE ASTERISKS",
		strings.TrimSpace(GoldenRules),
	} {
		require.Contains(t, got, want)
	}
	require.Equal(t, got, ProspectInstruction(lead, voice))
}

func TestEvaluationInstructionListsNineSections(t *testing.T) {
	got := EvaluationInstruction()
	for _, want := range []string{
		"1. OVERALL SCORE: [X/10]",
		"2. CALL SUMMARY:",
		"3. THE BRUTAL TRUTH:",
		"4. TONALITY ANALYSIS:",
		"5. THE PATTERN INTERRUPT:",
		"6. RUBRIC ALIGNMENT:",
		"7. OBJECTION HANDLING:",
		"8. THE CLOSE:",
		"9. ACTIONABLE ROADMAP:",
		"give a 0/10",
		strings.TrimSpace(GoldenRules),
	} {
		require.Contains(t, got, want)
	}
}

func TestEvaluationContent(t *testing.T) {
	msgs := []transcript.Message{
		{Role: transcript.RoleUser, Content: "Linda?"},
		{Role: transcript.RoleModel, Content: "Yes?"},
	}
	want := "TRANSCRIPT FOR ANALYSIS:\nUSER: Linda?\nMODEL: Yes?\n\n" +
		"PROSPECT PROFILE: Linda Moore (The Risk-Averse Bureaucrat. Terrified of making a mistake.)\n" +
		"PAIN POINT: Utility rates just hiked by 15%."
	assert.Equal(t, want, EvaluationContent(msgs, testLead()))
}
