package server

import (
	"encoding/json"
	"strings"

	"github.com/forPelevin/hookcut/internal/domain/hooks"
	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/hookcut/internal/types"
)

// Wire types use float seconds, like the oracle output.

type policyRequest struct {
	MinTotal *float64 `json:"min_total"`
	MaxTotal *float64 `json:"max_total"`
	Mode     string   `json:"mode"`
}

func (p *policyRequest) apply(base hooks.Policy) hooks.Policy {
	if p == nil {
		return base
	}
	if p.MinTotal != nil {
		base.MinTotal = types.Dur(*p.MinTotal)
	}
	if p.MaxTotal != nil {
		base.MaxTotal = types.Dur(*p.MaxTotal)
	}
	if p.Mode != "" {
		base.Mode = hooks.DurationMode(p.Mode)
	}
	return base
}

type wordJSON struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type resolveRequest struct {
	Hooks  json.RawMessage `json:"hooks"`
	Policy *policyRequest  `json:"policy"`
}

type planRequest struct {
	Source  string          `json:"source"`
	Hooks   json.RawMessage `json:"hooks"`
	Words   []wordJSON      `json:"words"`
	Text    string          `json:"text"`
	JSON3   json.RawMessage `json:"json3"`
	Policy  *policyRequest  `json:"policy"`
	Profile json.RawMessage `json:"profile"`
}

func (r planRequest) payload() types.TranscriptPayload {
	p := types.TranscriptPayload{Description: r.Text}
	if len(r.JSON3) > 0 {
		p.JSON3 = []byte(r.JSON3)
	}
	for _, w := range r.Words {
		p.Words = append(p.Words, types.TimedWord{Text: w.Text, Start: types.Dur(w.Start), End: types.Dur(w.End)})
	}
	return p
}

// oracleText accepts hooks either as JSON (array or wrapper object) or as a
// JSON string holding raw oracle output, fences and all.
func oracleText(raw json.RawMessage) string {
	t := strings.TrimSpace(string(raw))
	if strings.HasPrefix(t, `"`) {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return t
}

type windowView struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type captionView struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type clipView struct {
	Title         string        `json:"title"`
	Type          string        `json:"type,omitempty"`
	ViralityScore float64       `json:"virality_score"`
	Segments      []windowView  `json:"segments"`
	TotalDuration float64       `json:"total_duration"`
	Captions      []captionView `json:"captions,omitempty"`
}

func newClipView(s types.ClipSpec) clipView {
	v := clipView{
		Title:         s.Title,
		Type:          s.Type,
		ViralityScore: s.ViralityScore,
		TotalDuration: types.Seconds(s.TotalDuration),
		Segments:      windows(s.Segments),
	}
	for _, c := range s.Captions {
		v.Captions = append(v.Captions, captionView{Text: c.Text, Start: types.Seconds(c.Start), End: types.Seconds(c.End)})
	}
	return v
}

func windows(segs []types.Segment) []windowView {
	out := make([]windowView, 0, len(segs))
	for _, s := range segs {
		out = append(out, windowView{Start: types.Seconds(s.Start), End: types.Seconds(s.End)})
	}
	return out
}

type rejectionView struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func rejectionViews(rejs []*hooks.Rejection, malformed []error) []rejectionView {
	out := make([]rejectionView, 0, len(rejs)+len(malformed))
	for _, r := range rejs {
		out = append(out, rejectionView{Index: r.Index, Reason: string(r.Reason), Detail: r.Detail})
	}
	for _, e := range malformed {
		out = append(out, rejectionView{Index: -1, Reason: "malformed", Detail: e.Error()})
	}
	return out
}

type planView struct {
	Source          string       `json:"source"`
	Strategy        string       `json:"strategy"`
	Inputs          []windowView `json:"inputs"`
	Duration        float64      `json:"duration"`
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	VideoOut        string       `json:"video_out"`
	AudioOut        string       `json:"audio_out"`
	CaptionsDropped int          `json:"captions_dropped"`
	FilterGraph     string       `json:"filter_graph"`
}

func newPlanView(p render.Plan) *planView {
	return &planView{
		Source:          p.Source,
		Strategy:        string(p.Strategy),
		Inputs:          windows(p.Inputs),
		Duration:        types.Seconds(p.Duration),
		Width:           p.Width,
		Height:          p.Height,
		VideoOut:        p.VideoOut,
		AudioOut:        p.AudioOut,
		CaptionsDropped: p.CaptionsDropped,
		FilterGraph:     ffmpeg.FilterGraph(p, ""),
	}
}

type jobView struct {
	Clip  clipView  `json:"clip"`
	Plan  *planView `json:"plan,omitempty"`
	Error string    `json:"error,omitempty"`
}
