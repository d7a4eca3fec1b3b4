package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/hookcut/internal/domain/transcript"
	"github.com/forPelevin/hookcut/internal/types"
)

// AudioExtractor produces the 16kHz mono wav whisper.cpp expects.
type AudioExtractor interface {
	ExtractAudioMono16k(ctx context.Context, inMedia, outWav string) error
}

// Adapter is a transcript source for local media files.
type Adapter struct {
	bin     string
	model   string
	audio   AudioExtractor
	workDir string
}

func New(binPath, modelPath string, audio AudioExtractor, workDir string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath, audio: audio, workDir: workDir}
}

// Fetch transcribes the media at path and returns word timings plus the
// joined segment text.
func (a *Adapter) Fetch(ctx context.Context, path string) (types.TranscriptPayload, error) {
	dir, err := os.MkdirTemp(a.workDir, "asr-*")
	if err != nil {
		return types.TranscriptPayload{}, fmt.Errorf("create asr dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, "audio.wav")
	if err := a.audio.ExtractAudioMono16k(ctx, path, wav); err != nil {
		return types.TranscriptPayload{}, err
	}
	tr, err := a.Transcribe(ctx, wav, dir)
	if err != nil {
		return types.TranscriptPayload{}, err
	}

	parts := make([]string, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return types.TranscriptPayload{
		Words:       transcript.FromWhisper(tr),
		Description: strings.Join(parts, " "),
	}, nil
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, outDir string) (types.WhisperTranscript, error) {
	outPrefix := filepath.Join(outDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"-owts",
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.WhisperTranscript{}, &types.ExternalServiceError{
			Service: "whisper.cpp",
			Stage:   "transcribe",
			Err:     fmt.Errorf("%w\n%s", err, string(b)),
		}
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.WhisperTranscript{}, err
	}

	var tr types.WhisperTranscript
	if err := json.Unmarshal(jb, &tr); err != nil {
		return types.WhisperTranscript{}, &types.MalformedInputError{Source: "whisper output", Err: err}
	}
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
	}
	return tr, nil
}
