package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/hookcut/internal/types"
)

// wireCandidate is the oracle's JSON shape. Times are float seconds.
type wireCandidate struct {
	StartTime     float64       `json:"start_time"`
	EndTime       float64       `json:"end_time"`
	Segments      []wireSegment `json:"segments"`
	ViralityScore float64       `json:"virality_score"`
	Type          string        `json:"type"`
	Title         string        `json:"title"`
}

type wireSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// wrapperKeys are the object keys some models put the candidate list under.
var wrapperKeys = []string{"hooks", "clips", "candidates"}

// ParseCandidates decodes raw oracle output into hook candidates. Markdown code
// fences are stripped first. Both a bare array and an object wrapping the array
// are accepted. Elements are decoded one by one: a broken element is returned
// in elemErrs and does not affect the others. The returned error is non-nil
// only when no candidate list can be located at all.
func ParseCandidates(raw string) (cands []types.HookCandidate, elemErrs []error, err error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, nil, &types.MalformedInputError{Source: "oracle output", Err: err}
	}

	items, err := candidateList(body)
	if err != nil {
		return nil, nil, &types.MalformedInputError{Source: "oracle output", Err: err}
	}

	cands = make([]types.HookCandidate, 0, len(items))
	for i, item := range items {
		var w wireCandidate
		if err := json.Unmarshal(item, &w); err != nil {
			elemErrs = append(elemErrs, &types.MalformedInputError{
				Source: fmt.Sprintf("hook candidate %d", i),
				Err:    err,
			})
			continue
		}
		cands = append(cands, w.toCandidate())
	}
	return cands, elemErrs, nil
}

func (w wireCandidate) toCandidate() types.HookCandidate {
	c := types.HookCandidate{
		StartTime:     types.Dur(w.StartTime),
		EndTime:       types.Dur(w.EndTime),
		ViralityScore: w.ViralityScore,
		Type:          strings.TrimSpace(w.Type),
		Title:         strings.TrimSpace(w.Title),
	}
	for _, s := range w.Segments {
		c.Segments = append(c.Segments, types.Segment{Start: types.Dur(s.Start), End: types.Dur(s.End)})
	}
	return c
}

func candidateList(body string) ([]json.RawMessage, error) {
	if strings.HasPrefix(body, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, err
	}
	for _, k := range wrapperKeys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			return nil, fmt.Errorf("%q is not an array: %w", k, err)
		}
		return items, nil
	}
	// A lone candidate object.
	if _, ok := obj["segments"]; ok {
		return []json.RawMessage{json.RawMessage(body)}, nil
	}
	return nil, errors.New("no candidate list in object")
}

// extractJSON strips markdown fences and surrounding prose and returns the
// outermost JSON array or object.
func extractJSON(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("empty content")
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	// Take whichever opener comes first.
	ai := strings.Index(t, "[")
	oi := strings.Index(t, "{")
	switch {
	case ai >= 0 && (oi < 0 || ai < oi):
		if end := strings.LastIndex(t, "]"); end > ai {
			return t[ai : end+1], nil
		}
	case oi >= 0:
		if end := strings.LastIndex(t, "}"); end > oi {
			return t[oi : end+1], nil
		}
	}
	return "", fmt.Errorf("could not locate JSON in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
