package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/forPelevin/hookcut/internal/types"
)

const (
	// Progressive mp4 first, then anything with both streams.
	defaultFormat = "22/18/b"
	maxSubtitleSz = 16 << 20
)

// Preferred caption languages, manual tracks before automatic ones.
var captionLangs = []string{"en", "en-US", "en-GB"}

// Adapter resolves stream URLs and caption tracks with yt-dlp.
type Adapter struct {
	bin    string
	format string
	client *http.Client
}

func New(binPath, format string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if format == "" {
		format = defaultFormat
	}
	return &Adapter{bin: binPath, format: format, client: &http.Client{Timeout: time.Minute}}
}

// ResolveStream returns a direct, seekable media URL for videoURL.
func (a *Adapter) ResolveStream(ctx context.Context, videoURL string) (string, error) {
	cmd := exec.CommandContext(ctx, a.bin, "-g", "-f", a.format, "--no-playlist", videoURL)
	b, err := cmd.Output()
	if err != nil {
		return "", &types.ExternalServiceError{Service: "yt-dlp", Stage: "resolve stream", Err: withStderr(err)}
	}
	for _, line := range strings.Split(string(b), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", &types.ExternalServiceError{Service: "yt-dlp", Stage: "resolve stream", Err: errors.New("no stream URL in output")}
}

type track struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

type metadata struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Subtitles         map[string][]track `json:"subtitles"`
	AutomaticCaptions map[string][]track `json:"automatic_captions"`
}

// Fetch returns the video's json3 caption track, or its description when no
// English json3 track exists.
func (a *Adapter) Fetch(ctx context.Context, videoURL string) (types.TranscriptPayload, error) {
	cmd := exec.CommandContext(ctx, a.bin, "--dump-single-json", "--skip-download", "--no-warnings", "--no-playlist", videoURL)
	b, err := cmd.Output()
	if err != nil {
		return types.TranscriptPayload{}, &types.ExternalServiceError{Service: "yt-dlp", Stage: "metadata", Err: withStderr(err)}
	}
	var meta metadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return types.TranscriptPayload{}, &types.MalformedInputError{Source: "yt-dlp metadata", Err: err}
	}

	payload := types.TranscriptPayload{Description: strings.TrimSpace(meta.Description)}
	subURL := pickSubtitleURL(meta)
	if subURL == "" {
		if payload.Description == "" {
			return payload, types.ErrNoCaptions
		}
		return payload, nil
	}

	body, err := a.download(ctx, subURL)
	if err != nil {
		// Captions are optional: keep going on the description.
		if payload.Description == "" {
			return payload, err
		}
		return payload, nil
	}
	payload.JSON3 = body
	return payload, nil
}

func (a *Adapter) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &types.ExternalServiceError{Service: "captions", Stage: "download", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &types.ExternalServiceError{Service: "captions", Stage: "download", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSubtitleSz))
	if err != nil {
		return nil, &types.ExternalServiceError{Service: "captions", Stage: "download", Err: err}
	}
	return body, nil
}

func pickSubtitleURL(meta metadata) string {
	for _, tracks := range []map[string][]track{meta.Subtitles, meta.AutomaticCaptions} {
		for _, lang := range captionLangs {
			for _, t := range tracks[lang] {
				if t.Ext == "json3" && t.URL != "" {
					return t.URL
				}
			}
		}
	}
	return ""
}

func withStderr(err error) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return fmt.Errorf("%w\n%s", err, strings.TrimSpace(string(ee.Stderr)))
	}
	return err
}
