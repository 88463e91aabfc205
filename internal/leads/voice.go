package leads

import (
	"math/rand"
	"strings"
)

type Pitch string

const (
	PitchDeep     Pitch = "Deep"
	PitchBalanced Pitch = "Balanced"
	PitchHigh     Pitch = "High"
)

type Speed string

const (
	SpeedSlow   Speed = "Slow"
	SpeedNormal Speed = "Normal"
	SpeedFast   Speed = "Fast"
)

type Accent string

const (
	AccentNeutral    Accent = "Neutral"
	AccentSouthern   Accent = "Southern US"
	AccentNewYork    Accent = "New York"
	AccentMidwestern Accent = "Midwestern"
)

// VoiceSettings describes how the simulated prospect should sound for one call.
type VoiceSettings struct {
	Pitch  Pitch  `json:"pitch"`
	Speed  Speed  `json:"speed"`
	Accent Accent `json:"accent"`
}

// DefaultVoiceSettings is the voice shown before any lead has been picked.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Pitch: PitchBalanced, Speed: SpeedNormal, Accent: AccentNeutral}
}

var (
	pitches = []Pitch{PitchDeep, PitchBalanced, PitchHigh}
	speeds  = []Speed{SpeedSlow, SpeedNormal, SpeedFast}
	accents = []Accent{AccentNeutral, AccentSouthern, AccentNewYork, AccentMidwestern}
)

// RandomVoiceSettings draws each attribute uniformly from r.
func RandomVoiceSettings(r *rand.Rand) VoiceSettings {
	return VoiceSettings{
		Pitch:  pitches[r.Intn(len(pitches))],
		Speed:  speeds[r.Intn(len(speeds))],
		Accent: accents[r.Intn(len(accents))],
	}
}

// Prebuilt synthesized voices offered by the live model.
const (
	VoiceKore   = "Kore"
	VoiceZephyr = "Zephyr"
	VoiceFenrir = "Fenrir"
	VoicePuck   = "Puck"
	VoiceCharon = "Charon"
)

var femaleNames = []string{
	"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Barbara", "Susan", "Jessica", "Sarah", "Karen",
	"Nancy", "Lisa", "Betty", "Margaret", "Sandra", "Ashley", "Kimberly", "Alice", "Donna", "Emily",
	"Michelle", "Laura", "Deborah",
}

// VoiceForName picks a prebuilt voice for a lead. Names containing a known female
// first name get a female voice; the first byte spreads leads across the options.
func VoiceForName(name string) string {
	if name == "" {
		return VoiceCharon
	}
	code := int(name[0])
	for _, fn := range femaleNames {
		if strings.Contains(name, fn) {
			if code%2 == 0 {
				return VoiceKore
			}
			return VoiceZephyr
		}
	}
	switch code % 3 {
	case 0:
		return VoiceFenrir
	case 1:
		return VoicePuck
	default:
		return VoiceCharon
	}
}
