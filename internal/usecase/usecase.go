package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/hookcut/internal/domain/hooks"
	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/domain/subtitles"
	"github.com/forPelevin/hookcut/internal/platform/metrics"
	"github.com/forPelevin/hookcut/internal/ports"
	"github.com/forPelevin/hookcut/internal/types"
)

// ErrNoClips is returned when a run ends without a single rendered clip.
var ErrNoClips = errors.New("no clips rendered")

type Deps struct {
	Transcripts ports.TranscriptSource
	Oracle      ports.HookOracle
	Media       ports.MediaResolver
	Engine      ports.RenderEngine
	// Optional.
	Prober  ports.MediaProber
	Store   ports.ClipStore
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = slog.New(slog.DiscardHandler)
	}
	return Usecase{d: d}
}

type Input struct {
	VideoURL  string
	ProjectID string
	OutDir    string

	Policy  hooks.Policy
	Profile render.Profile

	// MaxClips keeps the first N resolved hooks; 0 keeps all.
	MaxClips      int
	Workers       int
	RenderTimeout time.Duration
	Thumbnails    bool
}

type Result struct {
	Manifest types.Manifest
	Records  []types.ClipRecord
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Log.With("video", in.VideoURL)

	log.Info("fetching transcript")
	payload, err := u.d.Transcripts.Fetch(ctx, in.VideoURL)
	if err != nil {
		return Result{}, fmt.Errorf("fetch transcript: %w", err)
	}
	tr := TranscriptFrom(payload)
	log.Info("transcript ready", "words", len(tr.Words), "chars", len(tr.Text))

	raw, err := u.d.Oracle.Analyze(ctx, tr)
	if err != nil {
		return Result{}, fmt.Errorf("analyze hooks: %w", err)
	}

	source, streamErr := u.d.Media.ResolveStream(ctx, in.VideoURL)
	if streamErr != nil {
		// Plans still get built so the manifest lists every hook.
		log.Error("stream unavailable", "err", streamErr)
		source = in.VideoURL
	}

	prep, err := Prepare(raw, tr, source, in.Policy, in.Profile, log)
	if err != nil {
		return Result{}, err
	}
	if streamErr != nil {
		for i := range prep.Jobs {
			prep.Jobs[i].Err = fmt.Errorf("resolve stream: %w", streamErr)
		}
	}
	for _, r := range prep.Rejections {
		u.d.Metrics.IncHookRejected(string(r.Reason))
	}
	for range prep.Malformed {
		u.d.Metrics.IncHookRejected("malformed")
	}
	u.d.Metrics.IncHooksResolved(len(prep.Jobs))

	jobs := prep.Jobs
	if in.MaxClips > 0 && len(jobs) > in.MaxClips {
		jobs = jobs[:in.MaxClips]
	}
	log.Info("hooks resolved", "accepted", len(prep.Jobs), "rejected", prep.Rejected(), "rendering", len(jobs))

	u.checkMediaBounds(ctx, source, jobs)

	clips := u.renderAll(ctx, in, jobs)

	res := Result{Manifest: types.Manifest{
		Input:    in.VideoURL,
		Hooks:    len(prep.Jobs) + prep.Rejected(),
		Rejected: prep.Rejected(),
		Clips:    make([]types.ManifestClip, 0, len(clips)),
	}}
	for i, c := range clips {
		res.Manifest.Clips = append(res.Manifest.Clips, c.manifest)
		if c.err == nil {
			res.Manifest.Rendered++
			res.Records = append(res.Records, types.NewClipRecord(c.manifest.ID, jobs[i].Spec, jobs[i].Plan.Inputs, planCaptions(jobs[i].Plan), in.VideoURL))
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	log.Info("render finished", "rendered", res.Manifest.Rendered, "of", len(jobs))

	if u.d.Store != nil && len(res.Records) > 0 {
		projectID := in.ProjectID
		if projectID == "" {
			projectID = uuid.NewString()
		}
		if err := u.d.Store.SaveClips(ctx, projectID, res.Records); err != nil {
			return res, &types.ExternalServiceError{Service: "clip store", Stage: "save", Err: err}
		}
		log.Info("clip records saved", "project", projectID, "clips", len(res.Records))
	}
	if res.Manifest.Rendered == 0 {
		for _, c := range clips {
			if c.err != nil {
				return res, fmt.Errorf("%w: %w", ErrNoClips, c.err)
			}
		}
		return res, ErrNoClips
	}
	return res, nil
}

// checkMediaBounds fails jobs whose segments run past the end of the source.
// An unknown duration leaves every job as is.
func (u Usecase) checkMediaBounds(ctx context.Context, source string, jobs []Job) {
	if u.d.Prober == nil || len(jobs) == 0 {
		return
	}
	dur, err := u.d.Prober.ProbeDuration(ctx, source)
	if err != nil || dur <= 0 {
		u.d.Log.Debug("media duration unknown", "err", err)
		return
	}
	for i := range jobs {
		if jobs[i].Err != nil {
			continue
		}
		for _, s := range jobs[i].Spec.Segments {
			if s.End > dur {
				jobs[i].Err = fmt.Errorf("segment [%s, %s) ends past media duration %s", s.Start, s.End, dur)
				break
			}
		}
	}
}

type clipOutcome struct {
	manifest types.ManifestClip
	err      error
}

// renderAll renders jobs with a bounded worker pool. A failed clip never
// stops the others; outcomes keep the order of jobs.
func (u Usecase) renderAll(ctx context.Context, in Input, jobs []Job) []clipOutcome {
	workers := in.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]clipOutcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		id := uuid.NewString()
		out[i].manifest = manifestClip(id, job.Spec)
		if job.Err != nil {
			out[i].err = &types.ResourceError{ClipID: id, Err: job.Err}
			out[i].manifest.Error = out[i].err.Error()
			u.d.Metrics.IncClipFailed("plan")
			continue
		}
		g.Go(func() error {
			m, err := u.renderOne(ctx, in, id, job)
			if err != nil {
				u.d.Log.Error("clip failed", "clip", id, "title", job.Spec.Title, "err", err)
				u.d.Metrics.IncClipFailed(failureStage(err))
				m.Error = err.Error()
			}
			out[i] = clipOutcome{manifest: m, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (u Usecase) renderOne(ctx context.Context, in Input, id string, job Job) (types.ManifestClip, error) {
	m := manifestClip(id, job.Spec)
	if err := ctx.Err(); err != nil {
		return m, err
	}
	dir := filepath.Join(in.OutDir, "clips", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return m, &types.ResourceError{ClipID: id, Err: err}
	}

	plan := job.Plan
	plan.JobID = id

	subsPath := filepath.Join(dir, "captions.ass")
	ass := subtitles.RenderASS(planCaptions(plan), in.Profile.Captions, plan.Width, plan.Height)
	if err := os.WriteFile(subsPath, []byte(ass), 0o644); err != nil {
		return m, &types.ResourceError{ClipID: id, Err: err}
	}
	m.Subtitles = rel(in.OutDir, subsPath)

	rctx := ctx
	if in.RenderTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, in.RenderTimeout)
		defer cancel()
	}
	clipPath := filepath.Join(dir, "clip."+plan.Output.Container)
	started := time.Now()
	if err := u.d.Engine.Render(rctx, plan, clipPath); err != nil {
		return m, err
	}
	if st, err := os.Stat(clipPath); err != nil || st.Size() == 0 {
		return m, &types.ResourceError{ClipID: id, Err: errors.New("render produced no output")}
	}
	u.d.Metrics.ObserveRender(time.Since(started))
	m.File = rel(in.OutDir, clipPath)

	if in.Thumbnails {
		thumbPath := filepath.Join(dir, "thumb.jpg")
		at := min(time.Second, plan.Duration/2)
		if err := u.d.Engine.ExtractFrame(rctx, clipPath, at, thumbPath); err != nil {
			u.d.Log.Warn("thumbnail failed", "clip", id, "err", err)
		} else {
			m.Thumbnail = rel(in.OutDir, thumbPath)
		}
	}
	u.d.Log.Info("clip rendered", "clip", id, "title", job.Spec.Title, "file", m.File)
	return m, nil
}

// planCaptions are the captions that actually made it into the plan.
func planCaptions(p render.Plan) []types.CaptionChunk {
	var out []types.CaptionChunk
	for _, st := range p.Stages {
		if st.Caption == nil {
			continue
		}
		out = append(out, types.CaptionChunk{Text: st.Caption.Text, Start: st.Caption.Start, End: st.Caption.End})
	}
	return out
}

func manifestClip(id string, spec types.ClipSpec) types.ManifestClip {
	m := types.ManifestClip{
		ID:            id,
		Title:         spec.Title,
		Type:          spec.Type,
		ViralityScore: spec.ViralityScore,
		TotalSec:      types.Seconds(spec.TotalDuration),
		Segments:      make([]types.ManifestWindow, 0, len(spec.Segments)),
		Captions:      make([]types.CaptionRecord, 0, len(spec.Captions)),
	}
	for _, s := range spec.Segments {
		m.Segments = append(m.Segments, types.ManifestWindow{StartSec: types.Seconds(s.Start), EndSec: types.Seconds(s.End)})
	}
	for _, c := range spec.Captions {
		m.Captions = append(m.Captions, types.CaptionRecord{Text: c.Text, Start: types.Seconds(c.Start), End: types.Seconds(c.End)})
	}
	return m
}

func failureStage(err error) string {
	var rf *render.RenderFailure
	if errors.As(err, &rf) {
		return rf.Stage
	}
	var re *types.ResourceError
	if errors.As(err, &re) {
		return "output"
	}
	return "other"
}

func rel(base, path string) string {
	if r, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}
