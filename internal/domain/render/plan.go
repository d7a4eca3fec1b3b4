// Package render builds declarative render plans for clips. It never runs the
// engine itself.
package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/hookcut/internal/types"
)

type StageKind string

const (
	StageConcat     StageKind = "concat"
	StageSplit      StageKind = "split"
	StageBackground StageKind = "background"
	StageForeground StageKind = "foreground"
	StageOverlay    StageKind = "overlay"
	StageCaption    StageKind = "caption"
)

// Filter is one engine filter with positional or key=value arguments.
type Filter struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// CaptionOverlay is a time-gated text overlay on the clip clock.
type CaptionOverlay struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Style CaptionStyle  `json:"style"`
}

// Stage reads the labeled streams in Inputs and writes Outputs. Caption
// stages carry a CaptionOverlay instead of Filters.
type Stage struct {
	Kind    StageKind       `json:"kind"`
	Inputs  []string        `json:"inputs"`
	Filters []Filter        `json:"filters,omitempty"`
	Caption *CaptionOverlay `json:"caption,omitempty"`
	Outputs []string        `json:"outputs"`
}

// Plan is everything the render engine needs for one clip. Input i of the
// engine is Source restricted to Inputs[i]; stream labels "i:v" and "i:a"
// refer to it.
type Plan struct {
	JobID    string          `json:"job_id,omitempty"`
	Source   string          `json:"source"`
	Strategy MediaStrategy   `json:"strategy"`
	Trims    []types.Segment `json:"trims"`
	Inputs   []types.Segment `json:"inputs"`
	Duration time.Duration   `json:"duration"`
	Stages   []Stage         `json:"stages"`
	VideoOut string          `json:"video_out"`
	AudioOut string          `json:"audio_out"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	Output   Output          `json:"output"`
	// CaptionsDropped counts captions that start after the extracted media ends.
	CaptionsDropped int `json:"captions_dropped,omitempty"`
}

// Build turns a resolved clip into a render plan. Captions are placed on the
// clip clock, so the engine must see the trimmed media starting at 0.
//
// With FirstSegmentOnly only the first segment is extracted; captions that
// start past its end are dropped and the rest are cut at its end.
func Build(spec types.ClipSpec, p Profile) (Plan, error) {
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	if strings.TrimSpace(spec.SourceURL) == "" {
		return Plan{}, errors.New("render plan: source is required")
	}
	if len(spec.Segments) == 0 {
		return Plan{}, errors.New("render plan: no segments")
	}
	var total time.Duration
	for i, s := range spec.Segments {
		if s.Start < 0 || s.End <= s.Start {
			return Plan{}, fmt.Errorf("render plan: segment %d is invalid", i)
		}
		total += s.Duration()
	}
	if spec.TotalDuration != total {
		return Plan{}, fmt.Errorf("render plan: total duration %s does not match segments (%s)", spec.TotalDuration, total)
	}
	for i, c := range spec.Captions {
		if c.Start < 0 || c.End <= c.Start || c.End > total {
			return Plan{}, fmt.Errorf("render plan: caption %d [%s, %s) is outside [0, %s]", i, c.Start, c.End, total)
		}
	}

	inputs := spec.Segments[:1]
	if p.MediaStrategy == Concat {
		inputs = spec.Segments
	}
	var mediaDur time.Duration
	for _, s := range inputs {
		mediaDur += s.Duration()
	}

	plan := Plan{
		Source:   spec.SourceURL,
		Strategy: p.MediaStrategy,
		Trims:    append([]types.Segment(nil), spec.Segments...),
		Inputs:   append([]types.Segment(nil), inputs...),
		Duration: mediaDur,
		Width:    p.Width,
		Height:   p.Height,
		Output:   p.Output,
	}

	video, audio := "0:v", "0:a"
	if len(inputs) > 1 {
		plan.Stages = append(plan.Stages, concatStage(len(inputs)))
		video, audio = "cat_v", "cat_a"
	}
	plan.Stages = append(plan.Stages, layoutStages(video, p)...)

	last := "out_v"
	for i, c := range spec.Captions {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		if c.Start >= mediaDur {
			plan.CaptionsDropped++
			continue
		}
		next := "txt" + strconv.Itoa(i)
		plan.Stages = append(plan.Stages, Stage{
			Kind:   StageCaption,
			Inputs: []string{last},
			Caption: &CaptionOverlay{
				Text:  text,
				Start: c.Start,
				End:   min(c.End, mediaDur),
				Style: p.Captions,
			},
			Outputs: []string{next},
		})
		last = next
	}
	plan.VideoOut = last
	plan.AudioOut = audio
	return plan, nil
}

func concatStage(n int) Stage {
	in := make([]string, 0, 2*n)
	for i := 0; i < n; i++ {
		in = append(in, strconv.Itoa(i)+":v", strconv.Itoa(i)+":a")
	}
	return Stage{
		Kind:    StageConcat,
		Inputs:  in,
		Filters: []Filter{{Name: "concat", Args: []string{"n=" + strconv.Itoa(n), "v=1", "a=1"}}},
		Outputs: []string{"cat_v", "cat_a"},
	}
}

// layoutStages fills the vertical frame with a blurred copy of the source and
// centers a fitted copy on top.
func layoutStages(video string, p Profile) []Stage {
	w, h := strconv.Itoa(p.Width), strconv.Itoa(p.Height)
	return []Stage{
		{
			Kind:    StageSplit,
			Inputs:  []string{video},
			Filters: []Filter{{Name: "split", Args: []string{"2"}}},
			Outputs: []string{"bg", "fg"},
		},
		{
			Kind:   StageBackground,
			Inputs: []string{"bg"},
			Filters: []Filter{
				{Name: "scale", Args: []string{w, h, "force_original_aspect_ratio=increase"}},
				{Name: "crop", Args: []string{w, h, "(iw-" + w + ")/2", "(ih-" + h + ")/2"}},
				{Name: "boxblur", Args: []string{strconv.Itoa(p.BlurRadius), strconv.Itoa(p.BlurPower)}},
			},
			Outputs: []string{"bg_blurred"},
		},
		{
			Kind:    StageForeground,
			Inputs:  []string{"fg"},
			Filters: []Filter{{Name: "scale", Args: []string{w, h, "force_original_aspect_ratio=decrease"}}},
			Outputs: []string{"fg_scaled"},
		},
		{
			Kind:    StageOverlay,
			Inputs:  []string{"bg_blurred", "fg_scaled"},
			Filters: []Filter{{Name: "overlay", Args: []string{"(W-w)/2", "(H-h)/2"}}},
			Outputs: []string{"out_v"},
		},
	}
}
