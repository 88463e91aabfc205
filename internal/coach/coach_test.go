package coach

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/prompt"
	"github.com/ent0n29/coldcall/internal/transcript"
)

type fakeGenerator struct {
	text   string
	err    error
	model  string
	config *genai.GenerateContentConfig
	body   string
	calls  int
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.body = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

var testLead = leads.Lead{
	ID:      "lead-3",
	Name:    "Patricia Brown",
	Persona: "The Burned Visionary. Had a big dream.",
	Context: "Neighbor recently installed solar.",
}

func TestGeminiEvaluatorBuildsRequestAndStripsAsterisks(t *testing.T) {
	gen := &fakeGenerator{text: "**1. OVERALL SCORE: [6/10]**\n2. CALL SUMMARY: ok"}
	ev := NewGeminiEvaluator(gen, GeminiConfig{}, nil)

	msgs := []transcript.Message{{Role: transcript.RoleUser, Content: "Patricia?"}}
	got, err := ev.Evaluate(context.Background(), msgs, testLead)
	require.NoError(t, err)
	assert.Equal(t, "1. OVERALL SCORE: [6/10]\n2. CALL SUMMARY: ok", got)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, DefaultGeminiModel, gen.model)
	require.NotNil(t, gen.config.Temperature)
	assert.InDelta(t, 0.3, *gen.config.Temperature, 1e-6)
	assert.Equal(t, prompt.EvaluationInstruction(), gen.config.SystemInstruction.Parts[0].Text)
	assert.Equal(t, prompt.EvaluationContent(msgs, testLead), gen.body)
}

func TestGeminiEvaluatorEmptyText(t *testing.T) {
	ev := NewGeminiEvaluator(&fakeGenerator{text: "  "}, GeminiConfig{Model: "m", Temperature: 0.5}, nil)
	got, err := ev.Evaluate(context.Background(), nil, testLead)
	require.NoError(t, err)
	assert.Equal(t, EmptyEvaluation, got)
}

func TestGeminiEvaluatorPropagatesTransportError(t *testing.T) {
	boom := errors.New("503 unavailable")
	gen := &fakeGenerator{err: boom}
	_, err := NewGeminiEvaluator(gen, GeminiConfig{}, nil).Evaluate(context.Background(), nil, testLead)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, gen.calls, "evaluation must not retry")
}

func TestFallbackScorecardParsesAsZero(t *testing.T) {
	sc := ParseScorecard(FallbackScorecard)
	assert.Equal(t, 0, sc.Score)
	require.Len(t, sc.Sections, 8)
	assert.Equal(t, "OVERALL SCORE", sc.Sections[0].Title)
	assert.Equal(t, "THE BRUTAL TRUTH", sc.Sections[1].Title)
	assert.Contains(t, sc.Sections[1].Body, "Technical interference")
}

func TestParseScorecard(t *testing.T) {
	text := "1. OVERALL SCORE: [7/10]\n\n2. CALL SUMMARY: They agreed: Thursday works.\n\n3. THE BRUTAL TRUTH: Solid."
	sc := ParseScorecard(text)
	assert.Equal(t, 7, sc.Score)
	require.Len(t, sc.Sections, 3)
	assert.Equal(t, Section{Title: "CALL SUMMARY", Body: "They agreed: Thursday works."}, sc.Sections[1])
	assert.Equal(t, text, sc.Raw)
}

func TestParseScorecardLenient(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		score    int
		sections []Section
	}{
		{"no score line", "The model rambled without structure", 0, []Section{{Body: "The model rambled without structure"}}},
		{"unbracketed score", "1. overall score: 9/10", 9, []Section{{Title: "overall score", Body: "9/10"}}},
		{"clamped", "OVERALL SCORE: 12/10", 10, []Section{{Title: "OVERALL SCORE", Body: "12/10"}}},
		{"empty", "", 0, []Section{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := ParseScorecard(tc.text)
			assert.Equal(t, tc.score, sc.Score)
			assert.Equal(t, tc.sections, sc.Sections)
		})
	}
}

func TestGrade(t *testing.T) {
	assert.Equal(t, "strong", Grade(8))
	assert.Equal(t, "average", Grade(5))
	assert.Equal(t, "weak", Grade(4))
}

func TestRubricEvaluatorSilentCallerScoresZero(t *testing.T) {
	msgs := []transcript.Message{{Role: transcript.RoleModel, Content: "Hello?"}}
	got, err := NewRubricEvaluator().Evaluate(context.Background(), msgs, testLead)
	require.NoError(t, err)
	assert.Equal(t, 0, ParseScorecard(got).Score)
	assert.Len(t, ParseScorecard(got).Sections, 9)
}

func TestRubricEvaluatorRewardsGoldenRules(t *testing.T) {
	good := []transcript.Message{
		{Role: transcript.RoleModel, Content: "Hello?"},
		{Role: transcript.RoleUser, Content: "Patricia?"},
		{Role: transcript.RoleModel, Content: "Yes, who is this?"},
		{Role: transcript.RoleUser, Content: "I'm not sure if we can even help you yet, but what's been the biggest challenge with your energy bill lately?"},
		{Role: transcript.RoleModel, Content: "It keeps going up."},
		{Role: transcript.RoleUser, Content: "If you don't fix that, what does it look like in six months? Why is this a priority now?"},
		{Role: transcript.RoleModel, Content: "Worse, I guess."},
		{Role: transcript.RoleUser, Content: "Would Thursday at 10 am work for a quick look?"},
	}
	bad := []transcript.Message{
		{Role: transcript.RoleModel, Content: "Hello?"},
		{Role: transcript.RoleUser, Content: "Hi! I'm calling from SunCo, how are you doing today?"},
	}

	ev := NewRubricEvaluator()
	goodText, err := ev.Evaluate(context.Background(), good, testLead)
	require.NoError(t, err)
	badText, err := ev.Evaluate(context.Background(), bad, testLead)
	require.NoError(t, err)

	goodCard := ParseScorecard(goodText)
	badCard := ParseScorecard(badText)
	assert.Equal(t, 10, goodCard.Score)
	assert.Equal(t, 0, badCard.Score)
	assert.Len(t, goodCard.Sections, 9)
	assert.True(t, strings.Contains(badText, "Sales breath detected"))
	assert.NotContains(t, goodText, "*")
}

func TestRubricEvaluatorHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRubricEvaluator().Evaluate(ctx, nil, testLead)
	require.ErrorIs(t, err, context.Canceled)
}
