package highlights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/hookcut/internal/types"
)

// Oracle proposes hooks from heuristic scores alone. It is the local stand-in
// for the LLM oracle and answers in the same JSON shape, so its output goes
// through the same parsing and validation.
type Oracle struct {
	MinClip  time.Duration
	MaxClip  time.Duration
	MaxHooks int
}

func NewOracle(minClip, maxClip time.Duration, maxHooks int) *Oracle {
	if maxHooks <= 0 {
		maxHooks = 3
	}
	return &Oracle{MinClip: minClip, MaxClip: maxClip, MaxHooks: maxHooks}
}

type hookJSON struct {
	StartTime     float64       `json:"start_time"`
	EndTime       float64       `json:"end_time"`
	Segments      []segmentJSON `json:"segments"`
	ViralityScore float64       `json:"virality_score"`
	Type          string        `json:"type"`
	Title         string        `json:"title"`
}

type segmentJSON struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (o *Oracle) Analyze(ctx context.Context, tr types.Transcript) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var hooks []hookJSON
	if len(tr.Words) >= 2 {
		for _, c := range Top(BuildCandidates(tr.Words, o.MinClip, o.MaxClip), o.MaxHooks, 2*time.Second) {
			hooks = append(hooks, hookJSON{
				StartTime:     types.Seconds(c.Start),
				EndTime:       types.Seconds(c.End),
				Segments:      []segmentJSON{{Start: types.Seconds(c.Start), End: types.Seconds(c.End)}},
				ViralityScore: c.Scores.Virality(),
				Type:          c.Scores.Kind(),
				Title:         titleFrom(c.Text),
			})
		}
	} else if strings.TrimSpace(tr.Text) != "" {
		// No timings: one opening hook of minimum length.
		end := types.Seconds(o.MinClip)
		s := Score(tr.Text)
		hooks = append(hooks, hookJSON{
			StartTime:     0,
			EndTime:       end,
			Segments:      []segmentJSON{{Start: 0, End: end}},
			ViralityScore: s.Virality(),
			Type:          s.Kind(),
			Title:         titleFrom(tr.Text),
		})
	}

	if hooks == nil {
		hooks = []hookJSON{}
	}
	b, err := json.Marshal(hooks)
	if err != nil {
		return "", fmt.Errorf("marshal heuristic hooks: %w", err)
	}
	return string(b), nil
}

// titleFrom takes the first few words of text.
func titleFrom(text string) string {
	const maxWords = 6
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "Highlight"
	}
	if len(fields) > maxWords {
		return strings.Join(fields[:maxWords], " ") + "..."
	}
	return strings.Join(fields, " ")
}
