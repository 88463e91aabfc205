// Package game is the per-user screen flow around a call: pick an industry,
// pick a lead, read the dossier, make the call, review the coaching.
package game

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/transcript"
)

type Step string

const (
	StepSetup    Step = "setup"
	StepDossier  Step = "dossier"
	StepRoleplay Step = "roleplay"
	StepCoaching Step = "coaching"
)

// SetupView is the sub-screen shown while Step is StepSetup.
type SetupView string

const (
	ViewIndustry SetupView = "industry"
	ViewLeads    SetupView = "leads"
)

var (
	ErrInvalidTransition = errors.New("invalid game transition")
	ErrBackDisabled      = errors.New("back is disabled on this screen")
)

// State is the whole UI state of one game. Every transition returns a new
// value; Messages and CurrentLead are never shared with the receiver.
type State struct {
	Step             Step                 `json:"step"`
	SetupView        SetupView            `json:"setup_view"`
	SelectedIndustry leads.Industry       `json:"selected_industry,omitempty"`
	CurrentLead      *leads.Lead          `json:"current_lead,omitempty"`
	Difficulty       leads.Difficulty     `json:"difficulty"`
	VoiceSettings    leads.VoiceSettings  `json:"voice_settings"`
	Messages         []transcript.Message `json:"messages"`
	FinalEvaluation  string               `json:"final_evaluation"`
	CallEnded        bool                 `json:"call_ended"`
}

func Initial() State {
	return State{
		Step:          StepSetup,
		SetupView:     ViewIndustry,
		Difficulty:    leads.DifficultyMedium,
		VoiceSettings: leads.DefaultVoiceSettings(),
		Messages:      []transcript.Message{},
	}
}

// Screen names the visible screen, e.g. "setup.leads" or "roleplay".
func (s State) Screen() string {
	if s.Step == StepSetup {
		return string(s.Step) + "." + string(s.SetupView)
	}
	return string(s.Step)
}

func (s State) BackDisabled() bool {
	return s.Step == StepSetup && s.SetupView == ViewIndustry
}

func (s State) Clone() State {
	c := s
	c.Messages = transcript.Clone(s.Messages)
	if s.CurrentLead != nil {
		lead := *s.CurrentLead
		c.CurrentLead = &lead
	}
	return c
}

func (s State) invalid(op string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, s.Screen())
}

func (s State) SelectIndustry(ind leads.Industry) (State, error) {
	if s.Screen() != "setup.industry" {
		return s, s.invalid("select industry")
	}
	ind, err := leads.ParseIndustry(string(ind))
	if err != nil {
		return s, err
	}
	next := s.Clone()
	next.SelectedIndustry = ind
	next.SetupView = ViewLeads
	return next, nil
}

// SetDifficulty changes the lead filter on the lead list.
func (s State) SetDifficulty(d leads.Difficulty) (State, error) {
	if s.Screen() != "setup.leads" {
		return s, s.invalid("set difficulty")
	}
	d, err := leads.ParseDifficulty(string(d))
	if err != nil {
		return s, err
	}
	next := s.Clone()
	next.Difficulty = d
	return next, nil
}

func (s State) SelectLead(lead leads.Lead, voice leads.VoiceSettings) (State, error) {
	if s.Screen() != "setup.leads" {
		return s, s.invalid("select lead")
	}
	if s.SelectedIndustry != "" && lead.Industry != s.SelectedIndustry {
		return s, fmt.Errorf("%w: lead %s is not in %s", ErrInvalidTransition, lead.ID, s.SelectedIndustry)
	}
	next := s.Clone()
	next.CurrentLead = &lead
	next.Difficulty = lead.Difficulty
	next.SelectedIndustry = lead.Industry
	next.VoiceSettings = voice
	next.Messages = []transcript.Message{}
	next.FinalEvaluation = ""
	next.CallEnded = false
	next.Step = StepDossier
	return next, nil
}

// SelectLeadRandomVoice is SelectLead with a fresh voice drawn from r.
func (s State) SelectLeadRandomVoice(lead leads.Lead, r *rand.Rand) (State, error) {
	return s.SelectLead(lead, leads.RandomVoiceSettings(r))
}

func (s State) BeginCall() (State, error) {
	if s.Step != StepDossier || s.CurrentLead == nil {
		return s, s.invalid("begin call")
	}
	next := s.Clone()
	next.Step = StepRoleplay
	next.CallEnded = false
	return next, nil
}

func (s State) EndCall(msgs []transcript.Message, evaluation string) (State, error) {
	if s.Step != StepRoleplay {
		return s, s.invalid("end call")
	}
	next := s.Clone()
	next.Messages = transcript.Clone(msgs)
	next.FinalEvaluation = evaluation
	next.CallEnded = true
	next.Step = StepCoaching
	return next, nil
}

func (s State) Back() (State, error) {
	if s.BackDisabled() {
		return s, ErrBackDisabled
	}
	next := s.Clone()
	switch s.Step {
	case StepSetup:
		next.SetupView = ViewIndustry
		next.SelectedIndustry = ""
	case StepDossier:
		next.Step = StepSetup
		next.SetupView = ViewLeads
	case StepRoleplay:
		next.Step = StepDossier
	case StepCoaching:
		next.Step = StepSetup
		next.SetupView = ViewLeads
	default:
		return s, s.invalid("back")
	}
	return next, nil
}

// Reset discards the lead, transcript and evaluation.
func (s State) Reset() State {
	return Initial()
}
