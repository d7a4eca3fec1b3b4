package ports

import (
	"context"
	"time"

	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/types"
)

// TranscriptSource returns the timed-caption payload for a video, or a plain
// description when the video has no captions.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoURL string) (types.TranscriptPayload, error)
}

// HookOracle proposes hooks for a transcript. The answer is raw, untrusted
// text expected to hold a JSON list of candidates.
type HookOracle interface {
	Analyze(ctx context.Context, tr types.Transcript) (string, error)
}

// MediaResolver turns a page URL into a direct, seekable stream URL.
type MediaResolver interface {
	ResolveStream(ctx context.Context, videoURL string) (string, error)
}

type RenderEngine interface {
	Render(ctx context.Context, plan render.Plan, outPath string) error
	ExtractFrame(ctx context.Context, source string, at time.Duration, outPath string) error
}

type ClipStore interface {
	SaveClips(ctx context.Context, projectID string, clips []types.ClipRecord) error
}

// MediaProber reports the duration of a media file or stream.
type MediaProber interface {
	ProbeDuration(ctx context.Context, media string) (time.Duration, error)
}
