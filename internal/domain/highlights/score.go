package highlights

import (
	"math"
	"regexp"
	"strings"
)

var (
	reNum     = regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\b`)
	reHook    = regexp.MustCompile(`(?i)\b(important|key|secret|mistake|never|always|here\s+is\s+why|remember|you\s+won'?t\s+believe|i\s+almost|the\s+truth)\b`)
	reHow     = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|do\s+this)\b`)
	reStepNum = regexp.MustCompile(`(?i)\bstep\s+\d+\b`)
)

// Scores are heuristic signals in [0..10].
type Scores struct {
	Info float64
	Hook float64
}

// Score rates a stretch of transcript text.
func Score(text string) Scores {
	t := strings.TrimSpace(text)
	if t == "" {
		return Scores{}
	}
	lower := strings.ToLower(t)

	info := float64(len(reNum.FindAllStringIndex(t, -1))) * 0.4
	if reHow.MatchString(lower) {
		info += 1.2
	}
	// small length penalty
	info -= 0.0006 * float64(len([]rune(t)))

	hook := float64(len(reHook.FindAllStringIndex(lower, -1))) * 0.9
	hook += float64(len(reStepNum.FindAllStringIndex(lower, -1))) * 0.4
	hook += float64(strings.Count(t, "?")) * 0.7
	hook += float64(strings.Count(t, "!")) * 0.3

	return Scores{Info: clamp(info, 0, 10), Hook: clamp(hook, 0, 10)}
}

func (s Scores) Total() float64 { return s.Info + s.Hook }

// Virality maps the scores onto the oracle's 0-100 scale. Hook strength
// weighs more than information density.
func (s Scores) Virality() float64 {
	v := 40 + 3.6*s.Hook + 2.4*s.Info
	return math.Round(clamp(v, 0, 100)*10) / 10
}

// Kind names the hook style the scores suggest.
func (s Scores) Kind() string {
	switch {
	case s.Hook == 0 && s.Info == 0:
		return "Pattern Interrupt"
	case s.Hook >= s.Info:
		return "High-Retention Hook"
	default:
		return "The Deep Dive"
	}
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
