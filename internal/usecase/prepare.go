package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/forPelevin/hookcut/internal/domain/hooks"
	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/domain/stitch"
	"github.com/forPelevin/hookcut/internal/domain/transcript"
	"github.com/forPelevin/hookcut/internal/types"
)

// TranscriptFrom picks the richest form a payload carries: words timed by
// local ASR, then json3 caption events, then the plain description. Word
// lists are normalized, so unsorted or start-only words are accepted.
func TranscriptFrom(p types.TranscriptPayload) types.Transcript {
	words := transcript.Normalize(p.Words)
	if len(words) == 0 && len(p.JSON3) > 0 {
		words = transcript.ParseJSON3(p.JSON3)
	}
	text := transcript.Text(words)
	if text == "" && len(p.JSON3) > 0 {
		text = transcript.PlainText(p.JSON3)
	}
	if text == "" {
		text = strings.TrimSpace(p.Description)
	}
	return types.Transcript{Text: text, Words: words}
}

// Job is one resolved hook ready for the render engine. Err is set when no
// plan could be built for it.
type Job struct {
	Spec types.ClipSpec
	Plan render.Plan
	Err  error
}

// Prepared is the deterministic part of a run: everything up to, but not
// including, the render engine.
type Prepared struct {
	Jobs       []Job
	Rejections []*hooks.Rejection
	// Malformed holds candidates that could not be decoded at all.
	Malformed []error
}

func (p Prepared) Rejected() int { return len(p.Rejections) + len(p.Malformed) }

// Prepare parses raw oracle output, resolves every candidate and builds a
// render plan per surviving hook. Same inputs give the same plans.
func Prepare(raw string, tr types.Transcript, source string, policy hooks.Policy, profile render.Profile, log *slog.Logger) (Prepared, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := policy.Validate(); err != nil {
		return Prepared{}, err
	}
	if err := profile.Validate(); err != nil {
		return Prepared{}, err
	}
	cands, elemErrs, err := hooks.ParseCandidates(raw)
	if err != nil {
		return Prepared{}, err
	}
	for _, e := range elemErrs {
		log.Warn("hook candidate dropped", "err", e)
	}

	specs, rejs := hooks.ResolveAll(cands, policy, log)
	out := Prepared{Rejections: rejs, Malformed: elemErrs}

	for i, spec := range specs {
		spec.SourceURL = source
		spec = stitch.Apply(spec, tr.Words, tr.Text, profile.CaptionGroupSize)
		job := Job{Spec: spec}
		job.Plan, job.Err = render.Build(spec, profile)
		if job.Err != nil {
			job.Err = fmt.Errorf("hook %d: %w", i, job.Err)
		}
		out.Jobs = append(out.Jobs, job)
	}
	return out, nil
}
