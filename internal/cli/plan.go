package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/platform/config"
	"github.com/forPelevin/hookcut/internal/server"
	"github.com/forPelevin/hookcut/internal/types"
	"github.com/forPelevin/hookcut/internal/usecase"
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print stitched captions and render plans for saved oracle output",
		Long: `Resolves oracle hooks against a transcript without touching the network
or the render engine. The transcript may be a YouTube json3 caption file,
a JSON array of {"text","start","end"} words in seconds, or plain text.`,
		Args: cobra.NoArgs,
		RunE: planRun,
	}
	fs := cmd.Flags()
	fs.String("hooks", "", "Oracle output file (JSON, fenced or wrapped)")
	fs.String("transcript", "", "Transcript file")
	fs.String("source", "", "Media URL or path the plans should read from")
	fs.String("profile", config.GetEnv("HOOKCUT_RENDER_PROFILE", ""), "Render profile YAML")
	addPolicyFlags(fs)
	_ = cmd.MarkFlagRequired("hooks")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func planRun(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	hooksPath, _ := fs.GetString("hooks")
	trPath, _ := fs.GetString("transcript")
	source, _ := fs.GetString("source")
	profilePath, _ := fs.GetString("profile")

	raw, err := os.ReadFile(hooksPath)
	if err != nil {
		return fmt.Errorf("read hooks: %w", err)
	}
	var payload types.TranscriptPayload
	if trPath != "" {
		b, err := os.ReadFile(trPath)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		if payload, err = transcriptPayload(b); err != nil {
			return err
		}
	}
	profile := render.DefaultProfile()
	if profilePath != "" {
		if profile, err = render.LoadProfile(profilePath); err != nil {
			return err
		}
	}

	prep, err := usecase.Prepare(string(raw), usecase.TranscriptFrom(payload), source, policyFromFlags(fs), profile, newLogger(cmd))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(server.PlanResponse(prep))
}

type fileWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// transcriptPayload sniffs the transcript format: a JSON array is a word
// list, a JSON object is json3, anything else is plain text.
func transcriptPayload(b []byte) (types.TranscriptPayload, error) {
	t := bytes.TrimSpace(b)
	switch {
	case len(t) == 0:
		return types.TranscriptPayload{}, errors.New("transcript file is empty")
	case t[0] == '[':
		var words []fileWord
		if err := json.Unmarshal(t, &words); err != nil {
			return types.TranscriptPayload{}, &types.MalformedInputError{Source: "transcript words", Err: err}
		}
		p := types.TranscriptPayload{Words: make([]types.TimedWord, 0, len(words))}
		for _, w := range words {
			p.Words = append(p.Words, types.TimedWord{Text: w.Text, Start: types.Dur(w.Start), End: types.Dur(w.End)})
		}
		return p, nil
	case t[0] == '{':
		return types.TranscriptPayload{JSON3: t}, nil
	default:
		return types.TranscriptPayload{Description: strings.TrimSpace(string(t))}, nil
	}
}
