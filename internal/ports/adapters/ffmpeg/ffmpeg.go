package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/hookcut/internal/domain/render"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	fonts   FontResolver
}

func New(ffmpegPath, ffprobePath string, fonts FontResolver) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if fonts == nil {
		fonts = NewFontResolver("")
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, fonts: fonts}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMedia, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inMedia,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

// Render runs one plan. Each plan input becomes a seeked, duration-limited
// -i of the same source, so the engine's clock starts at 0 for the clip.
func (a *Adapter) Render(ctx context.Context, plan render.Plan, outPath string) error {
	args, err := a.RenderArgs(plan, outPath)
	if err != nil {
		return &render.RenderFailure{Stage: "prepare", ClipID: plan.JobID, Err: err}
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return &render.RenderFailure{Stage: "render", ClipID: plan.JobID, Stderr: tail(string(b), 4000), Err: err}
	}
	return nil
}

// RenderArgs is the ffmpeg command line for plan, without the binary.
func (a *Adapter) RenderArgs(plan render.Plan, outPath string) ([]string, error) {
	if len(plan.Inputs) == 0 {
		return nil, errors.New("plan has no inputs")
	}
	fontFile := ""
	for _, st := range plan.Stages {
		if st.Caption == nil {
			continue
		}
		f, err := a.fonts.Resolve(st.Caption.Style.FontFamily)
		if err != nil {
			return nil, err
		}
		fontFile = f
		break
	}

	args := []string{"-y"}
	for _, in := range plan.Inputs {
		args = append(args,
			"-ss", fmtSeconds(in.Start),
			"-t", fmtSeconds(in.End-in.Start),
			"-i", plan.Source,
		)
	}
	audio := plan.AudioOut
	if strings.Contains(audio, ":") {
		// Raw input stream: tolerate sources without audio.
		audio += "?"
	} else {
		audio = "[" + audio + "]"
	}
	o := plan.Output
	args = append(args,
		"-filter_complex", FilterGraph(plan, fontFile),
		"-map", "["+plan.VideoOut+"]",
		"-map", audio,
		"-c:v", o.VideoCodec,
		"-preset", o.Preset,
		"-crf", strconv.Itoa(o.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", o.AudioCodec,
		"-b:a", o.AudioBitrate,
		"-movflags", "+faststart",
		"-f", o.Container,
		outPath,
	)
	return args, nil
}

// ExtractFrame writes a single frame at the given source time.
func (a *Adapter) ExtractFrame(ctx context.Context, source string, at time.Duration, outPath string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-ss", fmtSeconds(at),
		"-i", source,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return &render.RenderFailure{Stage: "thumbnail", Stderr: tail(string(b), 2000), Err: err}
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, inMedia string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inMedia,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	return p
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
