package leads

import (
	"errors"
	"fmt"
	"strings"
)

// Industry is one of the fixed campaign verticals a trainee can practice in.
type Industry string

const (
	IndustrySolar      Industry = "Solar Energy (B2C)"
	IndustryCyber      Industry = "SaaS - Cybersecurity (B2B)"
	IndustryInsurance  Industry = "Insurance - Medicare/Life (B2C)"
	IndustryMarketing  Industry = "Marketing Agency (B2B)"
	IndustryMedLogist  Industry = "Medical Logistics (B2B)"
	IndustryCommercial Industry = "Commercial HVAC (B2B)"
)

// Difficulty grades how resistant a lead is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

var (
	ErrUnknownLead       = errors.New("lead not found")
	ErrUnknownIndustry   = errors.New("unknown industry")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
)

// Lead is a synthetic prospect used to seed a simulated call.
type Lead struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Industry   Industry   `json:"industry"`
	Persona    string     `json:"persona"`
	Context    string     `json:"context"`
	Difficulty Difficulty `json:"difficulty"`
}

// LastName returns the final word of the lead's name, used for the prospect's greeting.
func (l Lead) LastName() string {
	fields := strings.Fields(l.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

var industries = []Industry{
	IndustrySolar,
	IndustryCyber,
	IndustryInsurance,
	IndustryMarketing,
	IndustryMedLogist,
	IndustryCommercial,
}

var difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Industries lists every industry in catalog order.
func Industries() []Industry {
	return append([]Industry(nil), industries...)
}

// Difficulties lists every difficulty from easiest to hardest.
func Difficulties() []Difficulty {
	return append([]Difficulty(nil), difficulties...)
}

// ParseIndustry matches raw case-insensitively against the known industries.
func ParseIndustry(raw string) (Industry, error) {
	raw = strings.TrimSpace(raw)
	for _, ind := range industries {
		if strings.EqualFold(raw, string(ind)) {
			return ind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIndustry, raw)
}

// ParseDifficulty matches raw case-insensitively against the known difficulties.
func ParseDifficulty(raw string) (Difficulty, error) {
	raw = strings.TrimSpace(raw)
	for _, d := range difficulties {
		if strings.EqualFold(raw, string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, raw)
}

var briefings = map[Industry]string{
	IndustrySolar:      "You are pitching a 'Free Home Energy Audit'. Your goal is to identify efficiency leaks in their home and book a follow-up consultation with a specialist to show them how to zero out their utility bill.",
	IndustryCyber:      "You are pitching a 'Vulnerability Discovery Call'. Your goal is to highlight the risks of recent phishing trends and book a 15-minute diagnostic session with your Lead Engineer.",
	IndustryInsurance:  "You are pitching a 'Policy Comparison Review'. Your goal is to help seniors find gaps in their current coverage and book a review with a licensed broker to ensure they aren't overpaying.",
	IndustryMarketing:  "You are pitching a 'Complimentary Lead-Gen Audit'. Your goal is to show local business owners where they are losing traffic to competitors and book a strategy session to fix their conversion funnels.",
	IndustryMedLogist:  "You are pitching 'On-Demand Lab Courier Services'. Your goal is to demonstrate how your platform improves specimen turnaround times and book a site visit to optimize their logistics route.",
	IndustryCommercial: "You are pitching 'Preventative Maintenance Contracts'. Your goal is to explain how regular servicing prevents $10k+ emergency repairs and book an inspection for their facility's rooftop units.",
}

// Briefing returns the campaign goal shown on the dossier screen.
func Briefing(ind Industry) string {
	return briefings[ind]
}
