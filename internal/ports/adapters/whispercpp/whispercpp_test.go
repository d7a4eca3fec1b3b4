package whispercpp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/forPelevin/hookcut/internal/types"
)

type fakeAudio struct{ err error }

func (f fakeAudio) ExtractAudioMono16k(_ context.Context, _, outWav string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outWav, []byte("RIFF"), 0o644)
}

// fakeWhisper writes a script that mimics whisper.cpp -oj: it finds the -of
// prefix in its arguments and writes body to <prefix>.json.
func fakeWhisper(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")
	if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	script := `#!/bin/sh
while [ $# -gt 0 ]; do
  if [ "$1" = "-of" ]; then cp "` + out + `" "$2.json"; fi
  shift
done
`
	bin := filepath.Join(dir, "whisper")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestFetch_WordTimings(t *testing.T) {
	bin := fakeWhisper(t, `{"segments":[
		{"start":0,"end":2,"text":"  hello world ","words":[{"start":0,"end":0.6,"word":" hello"},{"start":0.7,"end":1.2,"word":"world"}]},
		{"start":3,"end":4,"text":"again","words":[{"start":3,"end":3,"word":"again"}]}
	]}`)
	a := New(bin, "model.bin", fakeAudio{}, t.TempDir())

	p, err := a.Fetch(t.Context(), "in.mp4")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Description != "hello world again" {
		t.Fatalf("unexpected text %q", p.Description)
	}
	if len(p.Words) != 3 || p.Words[0].Text != "hello" || p.Words[1].End != 1200*time.Millisecond {
		t.Fatalf("unexpected words %+v", p.Words)
	}
	if p.Words[2].End <= p.Words[2].Start {
		t.Fatalf("expected an inferred end for a zero-length word, got %+v", p.Words[2])
	}
}

func TestFetch_Errors(t *testing.T) {
	audioErr := errors.New("no audio stream")
	a := New("unused", "model.bin", fakeAudio{err: audioErr}, t.TempDir())
	if _, err := a.Fetch(t.Context(), "in.mp4"); !errors.Is(err, audioErr) {
		t.Fatalf("expected audio error, got %v", err)
	}

	a = New(fakeWhisper(t, "not json"), "model.bin", fakeAudio{}, t.TempDir())
	_, err := a.Fetch(t.Context(), "in.mp4")
	var mi *types.MalformedInputError
	if !errors.As(err, &mi) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}

	a = New(filepath.Join(t.TempDir(), "missing-bin"), "model.bin", fakeAudio{}, t.TempDir())
	_, err = a.Fetch(t.Context(), "in.mp4")
	var ext *types.ExternalServiceError
	if !errors.As(err, &ext) || ext.Service != "whisper.cpp" {
		t.Fatalf("expected whisper.cpp service error, got %v", err)
	}
}
