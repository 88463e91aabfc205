// Package coach grades finished calls.
package coach

import (
	"context"

	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/transcript"
)

// Evaluator turns a finished transcript into scorecard text. Transport
// failures are returned to the caller; implementations never retry.
type Evaluator interface {
	Evaluate(ctx context.Context, msgs []transcript.Message, lead leads.Lead) (string, error)
}

// FallbackScorecard replaces the evaluation when the grading request fails.
const FallbackScorecard = `1. OVERALL SCORE: 0/10
2. THE BRUTAL TRUTH: Technical interference. The line was cut before intelligence could be gathered.
3. TONALITY ANALYSIS: N/A.
4. THE PATTERN INTERRUPT: N/A.
5. RUBRIC ALIGNMENT: N/A.
6. OBJECTION HANDLING: N/A.
7. THE CLOSE: Mission aborted.
8. ACTIONABLE ROADMAP: Re-establish connection and try again.`

// EmptyEvaluation is returned when the model answers with no text.
const EmptyEvaluation = "Evaluation failed."
