package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forPelevin/hookcut/internal/domain/hooks"
	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/types"
)

type fakeTranscripts struct {
	payload types.TranscriptPayload
	err     error
}

func (f fakeTranscripts) Fetch(context.Context, string) (types.TranscriptPayload, error) {
	return f.payload, f.err
}

type fakeOracle struct {
	raw string
	err error
	got types.Transcript
}

func (f *fakeOracle) Analyze(_ context.Context, tr types.Transcript) (string, error) {
	f.got = tr
	return f.raw, f.err
}

type fakeMedia struct{ err error }

func (f fakeMedia) ResolveStream(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/stream.mp4", nil
}

type fakeEngine struct {
	mu     sync.Mutex
	plans  []render.Plan
	frames []string
	fail   map[time.Duration]error
}

func (f *fakeEngine) Render(_ context.Context, plan render.Plan, outPath string) error {
	f.mu.Lock()
	f.plans = append(f.plans, plan)
	f.mu.Unlock()
	if err := f.fail[plan.Inputs[0].Start]; err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("mp4"), 0o644)
}

func (f *fakeEngine) ExtractFrame(_ context.Context, source string, _ time.Duration, outPath string) error {
	f.mu.Lock()
	f.frames = append(f.frames, source)
	f.mu.Unlock()
	return os.WriteFile(outPath, []byte("jpg"), 0o644)
}

type fakeStore struct {
	project string
	records []types.ClipRecord
	err     error
}

func (f *fakeStore) SaveClips(_ context.Context, projectID string, clips []types.ClipRecord) error {
	f.project = projectID
	f.records = clips
	return f.err
}

type fakeProber struct{ dur time.Duration }

func (f fakeProber) ProbeDuration(context.Context, string) (time.Duration, error) { return f.dur, nil }

// json3 with one word per second for the first five minutes.
func testJSON3() []byte {
	var b strings.Builder
	b.WriteString(`{"events":[`)
	for i := 0; i < 300; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"tStartMs":` + strconv.Itoa(i*1000) + `,"segs":[{"utf8":"w` + strconv.Itoa(i) + `"}]}`)
	}
	b.WriteString(`]}`)
	return []byte(b.String())
}

const twoHooks = `{"hooks":[
 {"segments":[{"start":0,"end":30},{"start":120,"end":150}],"virality_score":91,"type":"The Story Arc","title":"setup and payoff"},
 {"segments":[{"start":200,"end":270}],"virality_score":70,"type":"The Deep Dive","title":"deep"},
 {"segments":[{"start":10,"end":20}],"virality_score":50,"title":"too short"}
]}`

func testInput(t *testing.T) Input {
	t.Helper()
	return Input{
		VideoURL:   "https://youtu.be/abc",
		ProjectID:  "p1",
		OutDir:     t.TempDir(),
		Policy:     hooks.DefaultPolicy(),
		Profile:    render.DefaultProfile(),
		Workers:    2,
		Thumbnails: true,
	}
}

func TestRun_RendersAcceptedHooks(t *testing.T) {
	oracle := &fakeOracle{raw: twoHooks}
	engine := &fakeEngine{}
	store := &fakeStore{}
	uc := New(Deps{
		Transcripts: fakeTranscripts{payload: types.TranscriptPayload{JSON3: testJSON3()}},
		Oracle:      oracle,
		Media:       fakeMedia{},
		Engine:      engine,
		Store:       store,
	})

	in := testInput(t)
	res, err := uc.Run(t.Context(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(oracle.got.Words) != 300 {
		t.Fatalf("expected oracle to see 300 timed words, got %d", len(oracle.got.Words))
	}

	m := res.Manifest
	if m.Hooks != 3 || m.Rejected != 1 || m.Rendered != 2 || len(m.Clips) != 2 {
		t.Fatalf("unexpected manifest counts: %+v", m)
	}
	first := m.Clips[0]
	if first.Title != "setup and payoff" || first.TotalSec != 60 || len(first.Segments) != 2 {
		t.Fatalf("unexpected first clip: %+v", first)
	}
	if len(first.Captions) != 30 || first.Captions[15].Start != 30 {
		t.Fatalf("expected 30 two-word captions with the payoff at 30s, got %d", len(first.Captions))
	}
	for _, c := range m.Clips {
		for _, p := range []string{c.File, c.Subtitles, c.Thumbnail} {
			if p == "" {
				t.Fatalf("missing artifact path in %+v", c)
			}
			if _, err := os.Stat(filepath.Join(in.OutDir, p)); err != nil {
				t.Fatalf("artifact %s: %v", p, err)
			}
		}
	}

	if len(engine.plans) != 2 {
		t.Fatalf("expected 2 renders, got %d", len(engine.plans))
	}
	for _, p := range engine.plans {
		if p.JobID == "" || p.Source != "https://cdn.example/stream.mp4" {
			t.Fatalf("unexpected plan: %+v", p)
		}
	}

	if store.project != "p1" || len(store.records) != 2 {
		t.Fatalf("unexpected store call: %q %d", store.project, len(store.records))
	}
	if store.records[0].ID != first.ID || store.records[0].StartTime != 0 || store.records[0].EndTime != 30 {
		t.Fatalf("unexpected record: %+v", store.records[0])
	}
	// Only the first segment is rendered, so the payoff captions are not stored.
	segs := store.records[0].TranscriptSegment
	if len(segs) != 15 || segs[len(segs)-1].End > 30 {
		t.Fatalf("expected the 15 rendered captions, got %d", len(segs))
	}
}

func TestRun_ConcatRecordSpansRenderedSegments(t *testing.T) {
	store := &fakeStore{}
	uc := New(Deps{
		Transcripts: fakeTranscripts{payload: types.TranscriptPayload{JSON3: testJSON3()}},
		Oracle:      &fakeOracle{raw: twoHooks},
		Media:       fakeMedia{},
		Engine:      &fakeEngine{},
		Store:       store,
	})
	in := testInput(t)
	in.Profile.MediaStrategy = render.Concat
	if _, err := uc.Run(t.Context(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	rec := store.records[0]
	if rec.StartTime != 0 || rec.EndTime != 150 || len(rec.TranscriptSegment) != 30 {
		t.Fatalf("unexpected record: start %v end %v captions %d", rec.StartTime, rec.EndTime, len(rec.TranscriptSegment))
	}
}

func TestRun_PartialSuccess(t *testing.T) {
	engine := &fakeEngine{fail: map[time.Duration]error{
		200 * time.Second: &render.RenderFailure{Stage: "render", Err: errors.New("exit status 1")},
	}}
	uc := New(Deps{
		Transcripts: fakeTranscripts{payload: types.TranscriptPayload{JSON3: testJSON3()}},
		Oracle:      &fakeOracle{raw: twoHooks},
		Media:       fakeMedia{},
		Engine:      engine,
	})
	res, err := uc.Run(t.Context(), testInput(t))
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if res.Manifest.Rendered != 1 || len(res.Records) != 1 {
		t.Fatalf("expected 1 of 2 rendered, got %+v", res.Manifest)
	}
	if res.Manifest.Clips[1].Error == "" || res.Manifest.Clips[1].File != "" {
		t.Fatalf("expected failed clip to carry its error, got %+v", res.Manifest.Clips[1])
	}
}

func TestRun_StreamUnavailable(t *testing.T) {
	engine := &fakeEngine{}
	uc := New(Deps{
		Transcripts: fakeTranscripts{payload: types.TranscriptPayload{JSON3: testJSON3()}},
		Oracle:      &fakeOracle{raw: twoHooks},
		Media:       fakeMedia{err: errors.New("403")},
		Engine:      engine,
	})
	res, err := uc.Run(t.Context(), testInput(t))
	if !errors.Is(err, ErrNoClips) {
		t.Fatalf("expected ErrNoClips, got %v", err)
	}
	var re *types.ResourceError
	if !errors.As(err, &re) {
		t.Fatalf("expected ResourceError cause, got %v", err)
	}
	if len(engine.plans) != 0 || len(res.Manifest.Clips) != 2 {
		t.Fatalf("expected no renders and 2 listed clips, got %d / %d", len(engine.plans), len(res.Manifest.Clips))
	}
}

func TestRun_MediaBounds(t *testing.T) {
	engine := &fakeEngine{}
	uc := New(Deps{
		Transcripts: fakeTranscripts{payload: types.TranscriptPayload{JSON3: testJSON3()}},
		Oracle:      &fakeOracle{raw: twoHooks},
		Media:       fakeMedia{},
		Engine:      engine,
		Prober:      fakeProber{dur: 240 * time.Second},
	})
	res, err := uc.Run(t.Context(), testInput(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Manifest.Rendered != 1 || !strings.Contains(res.Manifest.Clips[1].Error, "past media duration") {
		t.Fatalf("expected second clip to fail the bounds check, got %+v", res.Manifest.Clips[1])
	}
}

func TestRun_MaxClipsAndPlainDescription(t *testing.T) {
	oracle := &fakeOracle{raw: twoHooks}
	engine := &fakeEngine{}
	uc := New(Deps{
		Transcripts: fakeTranscripts{payload: types.TranscriptPayload{Description: "one two three four five six"}},
		Oracle:      oracle,
		Media:       fakeMedia{},
		Engine:      engine,
	})
	in := testInput(t)
	in.MaxClips = 1
	res, err := uc.Run(t.Context(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if oracle.got.Text != "one two three four five six" || len(oracle.got.Words) != 0 {
		t.Fatalf("unexpected oracle transcript: %+v", oracle.got)
	}
	if len(res.Manifest.Clips) != 1 || len(engine.plans) != 1 {
		t.Fatalf("expected a single clip, got %d", len(res.Manifest.Clips))
	}
	caps := res.Manifest.Clips[0].Captions
	if len(caps) != 2 || caps[0].Text != "one two three" || caps[1].End != 60 {
		t.Fatalf("expected evenly spread plain captions, got %+v", caps)
	}
}

func TestRun_UpstreamFailures(t *testing.T) {
	fetchErr := errors.New("yt-dlp exploded")
	tests := []struct {
		name string
		deps Deps
		want error
	}{
		{
			name: "transcript",
			deps: Deps{Transcripts: fakeTranscripts{err: fetchErr}, Oracle: &fakeOracle{}},
			want: fetchErr,
		},
		{
			name: "oracle rate limited",
			deps: Deps{
				Transcripts: fakeTranscripts{payload: types.TranscriptPayload{Description: "x"}},
				Oracle:      &fakeOracle{err: &types.ExternalServiceError{Service: "openrouter", Err: types.ErrRateLimited}},
			},
			want: types.ErrRateLimited,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.deps.Media = fakeMedia{}
			tt.deps.Engine = &fakeEngine{}
			_, err := New(tt.deps).Run(t.Context(), testInput(t))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRun_MalformedOracleOutput(t *testing.T) {
	uc := New(Deps{
		Transcripts: fakeTranscripts{payload: types.TranscriptPayload{Description: "x"}},
		Oracle:      &fakeOracle{raw: "I could not find any hooks, sorry"},
		Media:       fakeMedia{},
		Engine:      &fakeEngine{},
	})
	_, err := uc.Run(t.Context(), testInput(t))
	var mi *types.MalformedInputError
	if !errors.As(err, &mi) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
}

func TestRun_StoreFailureKeepsManifest(t *testing.T) {
	uc := New(Deps{
		Transcripts: fakeTranscripts{payload: types.TranscriptPayload{JSON3: testJSON3()}},
		Oracle:      &fakeOracle{raw: twoHooks},
		Media:       fakeMedia{},
		Engine:      &fakeEngine{},
		Store:       &fakeStore{err: errors.New("db down")},
	})
	res, err := uc.Run(t.Context(), testInput(t))
	var ext *types.ExternalServiceError
	if !errors.As(err, &ext) || ext.Service != "clip store" {
		t.Fatalf("expected clip store error, got %v", err)
	}
	if res.Manifest.Rendered != 2 {
		t.Fatalf("expected manifest to survive store failure, got %+v", res.Manifest)
	}
}
