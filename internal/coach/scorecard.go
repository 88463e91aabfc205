package coach

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	scorePattern   = regexp.MustCompile(`(?i)OVERALL SCORE: \[?(\d+)/10\]?`)
	sectionPattern = regexp.MustCompile(`\d+\.\s+`)
)

// Section is one numbered scorecard entry. Title is empty when the text had no colon.
type Section struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// Scorecard is the best-effort structured reading of an evaluation.
type Scorecard struct {
	Score    int       `json:"score"`
	Sections []Section `json:"sections"`
	Raw      string    `json:"raw"`
}

// ParseScorecard never fails. A missing score line reads as 0 and text without
// numbered sections comes back as a single untitled section.
func ParseScorecard(text string) Scorecard {
	sc := Scorecard{Raw: text, Sections: []Section{}}
	if m := scorePattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			sc.Score = min(n, 10)
		}
	}
	for _, chunk := range sectionPattern.Split(text, -1) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		title, body, ok := strings.Cut(chunk, ":")
		if !ok {
			sc.Sections = append(sc.Sections, Section{Body: chunk})
			continue
		}
		sc.Sections = append(sc.Sections, Section{
			Title: strings.TrimSpace(title),
			Body:  strings.TrimSpace(body),
		})
	}
	return sc
}

// Grade buckets a score the way the coaching screen colors it.
func Grade(score int) string {
	switch {
	case score >= 8:
		return "strong"
	case score >= 5:
		return "average"
	default:
		return "weak"
	}
}
