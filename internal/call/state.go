// Package call drives a single simulated cold call: it folds live stream
// events into a transcript, schedules prospect audio and finishes the call
// exactly once with an evaluation.
package call

import (
	"strings"
	"time"

	"github.com/ent0n29/coldcall/internal/live"
	"github.com/ent0n29/coldcall/internal/prompt"
	"github.com/ent0n29/coldcall/internal/transcript"
)

// DefaultConnectionGrace is how long a call may fail before anything was said
// and still be reported as a connection problem instead of a hang-up.
const DefaultConnectionGrace = 5 * time.Second

type Status string

const (
	StatusInitializing    Status = "initializing"
	StatusLiveCall        Status = "live_call"
	StatusProspectHungUp  Status = "prospect_hung_up"
	StatusAnalyzing       Status = "analyzing"
	StatusConnectionError Status = "connection_error"
	StatusClosed          Status = "closed"
)

type EffectKind string

const (
	EffectStatusChanged   EffectKind = "status_changed"
	EffectPartialUpdated  EffectKind = "partial_updated"
	EffectMessageAppended EffectKind = "message_appended"
	EffectPartialsCleared EffectKind = "partials_cleared"
	EffectFinishRequested EffectKind = "finish_requested"
)

// Effect is an instruction for the runtime produced by a state transition.
type Effect struct {
	Kind    EffectKind
	Status  Status
	Role    transcript.Role
	Text    string
	Index   int
	Message transcript.Message
	Manual  bool
}

// State is the pure call state. Transitions return a new value and never
// touch the caller's copy of Messages.
type State struct {
	Status    Status
	StartedAt time.Time
	UserText  string
	ModelText string
	Messages  []transcript.Message
	HasSpoken bool
	Finishing bool
	Stopped   bool
}

func NewState(startedAt time.Time) State {
	return State{Status: StatusInitializing, StartedAt: startedAt}
}

// Done reports whether the state ignores further stream events.
func (s State) Done() bool {
	return s.Finishing || s.Stopped
}

func (s State) Apply(ev live.Event) (State, []Effect) {
	if s.Done() {
		return s, nil
	}

	switch ev.Type {
	case live.EventOpen:
		if s.Status != StatusInitializing {
			return s, nil
		}
		s.Status = StatusLiveCall
		return s, []Effect{{Kind: EffectStatusChanged, Status: s.Status}}

	case live.EventInputTranscript:
		s.UserText += ev.Text
		return s, []Effect{{Kind: EffectPartialUpdated, Role: transcript.RoleUser, Text: s.UserText}}

	case live.EventOutputTranscript:
		s.ModelText += ev.Text
		s.HasSpoken = true
		effects := []Effect{{Kind: EffectPartialUpdated, Role: transcript.RoleModel, Text: s.ModelText}}
		// Fragments can split the phrase, so match on the whole turn so far.
		if prompt.ContainsTerminationPhrase(s.ModelText) {
			effects = append(effects, Effect{Kind: EffectFinishRequested})
		}
		return s, effects

	case live.EventTurnComplete:
		var effects []Effect
		var appended []transcript.Message
		s.Messages, appended = flush(s.Messages, s.UserText, s.ModelText)
		base := len(s.Messages) - len(appended)
		for i, msg := range appended {
			effects = append(effects, Effect{Kind: EffectMessageAppended, Index: base + i, Message: msg})
		}
		s.UserText, s.ModelText = "", ""
		return s, append(effects, Effect{Kind: EffectPartialsCleared})

	case live.EventAudio:
		s.HasSpoken = true
		return s, nil

	case live.EventClosed, live.EventError:
		return s, []Effect{{Kind: EffectFinishRequested}}
	}

	return s, nil
}

type FinishOutcome int

const (
	FinishIgnored FinishOutcome = iota
	FinishConnectionError
	FinishProceed
)

type FinishDecision struct {
	Outcome  FinishOutcome
	Messages []transcript.Message
}

// BeginFinish runs the finish guard. Only the first call after the call went
// live can proceed. A non-manual finish inside the grace window with nothing
// said or heard stops the call as a connection error and skips evaluation.
func (s State) BeginFinish(manual bool, now time.Time, grace time.Duration) (State, FinishDecision) {
	if s.Done() {
		return s, FinishDecision{Outcome: FinishIgnored}
	}

	if !manual && now.Sub(s.StartedAt) < grace && !s.HasSpoken && len(s.Messages) == 0 {
		s.Stopped = true
		s.Status = StatusConnectionError
		return s, FinishDecision{Outcome: FinishConnectionError}
	}

	s.Finishing = true
	if manual {
		s.Status = StatusAnalyzing
	} else {
		s.Status = StatusProspectHungUp
	}
	s.Messages, _ = flush(s.Messages, s.UserText, s.ModelText)
	s.UserText, s.ModelText = "", ""
	return s, FinishDecision{Outcome: FinishProceed, Messages: transcript.Clone(s.Messages)}
}

// Complete marks a finishing call as closed once its evaluation is settled.
func (s State) Complete() State {
	if s.Finishing {
		s.Status = StatusClosed
	}
	return s
}

// flush appends the pending user then model text as final messages.
func flush(msgs []transcript.Message, userText, modelText string) ([]transcript.Message, []transcript.Message) {
	var appended []transcript.Message
	if user := strings.TrimSpace(userText); user != "" {
		appended = append(appended, transcript.Message{Role: transcript.RoleUser, Content: user})
	}
	if model := prompt.StripTerminationPhrase(modelText); model != "" {
		appended = append(appended, transcript.Message{Role: transcript.RoleModel, Content: model})
	}
	if len(appended) == 0 {
		return msgs, nil
	}
	out := make([]transcript.Message, 0, len(msgs)+len(appended))
	out = append(out, msgs...)
	return append(out, appended...), appended
}
