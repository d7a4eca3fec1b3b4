package transcript

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/hookcut/internal/types"
)

const (
	// Fragments without their own offset are spaced this far apart inside a group.
	syntheticStep = 500 * time.Millisecond
	// Caption display is capped at this length across silences.
	maxWordSpan = 2 * time.Second
	// Used when there is no usable next word.
	defaultWordSpan = 500 * time.Millisecond
)

type json3Payload struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	TStartMs int64       `json:"tStartMs"`
	Segs     []json3Frag `json:"segs"`
}

type json3Frag struct {
	UTF8      string `json:"utf8"`
	TOffsetMs *int64 `json:"tOffsetMs,omitempty"`
}

type rawWord struct {
	text  string
	start time.Duration
}

// ParseJSON3 flattens a json3 caption payload into timed words sorted by start.
// An absent or malformed payload yields an empty list: callers treat that as
// "no captions available".
func ParseJSON3(payload []byte) []types.TimedWord {
	var p json3Payload
	if len(payload) == 0 || json.Unmarshal(payload, &p) != nil {
		return nil
	}

	var raw []rawWord
	for _, ev := range p.Events {
		groupStart := time.Duration(ev.TStartMs) * time.Millisecond
		var synthetic time.Duration
		for _, f := range ev.Segs {
			text := strings.TrimSpace(f.UTF8)
			if text == "" {
				continue
			}
			start := groupStart
			if f.TOffsetMs != nil && *f.TOffsetMs != 0 {
				start += time.Duration(*f.TOffsetMs) * time.Millisecond
			} else {
				start += synthetic
				synthetic += syntheticStep
			}
			raw = append(raw, rawWord{text: text, start: start})
		}
	}
	return inferEnds(raw)
}

// PlainText joins every caption fragment of a json3 payload into the flat
// transcript string the oracle reads.
func PlainText(payload []byte) string {
	var p json3Payload
	if len(payload) == 0 || json.Unmarshal(payload, &p) != nil {
		return ""
	}
	parts := make([]string, 0, len(p.Events))
	for _, ev := range p.Events {
		var b strings.Builder
		for _, f := range ev.Segs {
			b.WriteString(f.UTF8)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// FromWhisper converts whisper.cpp output into timed words. Word timings are
// used when a segment has them. A segment without words has its text spread
// evenly over its own [start, end).
func FromWhisper(tr types.WhisperTranscript) []types.TimedWord {
	var out []types.TimedWord
	for _, s := range tr.Segments {
		if len(s.Words) == 0 {
			out = append(out, spreadSegment(s)...)
			continue
		}
		for _, w := range s.Words {
			out = append(out, types.TimedWord{Text: w.Word, Start: types.Dur(w.Start), End: types.Dur(w.End)})
		}
	}
	return Normalize(out)
}

func spreadSegment(s types.WhisperSegment) []types.TimedWord {
	fields := strings.Fields(s.Text)
	if len(fields) == 0 {
		return nil
	}
	start, end := types.Dur(s.Start), types.Dur(s.End)
	step := (end - start) / time.Duration(len(fields))
	out := make([]types.TimedWord, 0, len(fields))
	for i, f := range fields {
		w := types.TimedWord{Text: f, Start: start + time.Duration(i)*step}
		if step > 0 {
			w.End = w.Start + step
		}
		out = append(out, w)
	}
	return out
}

// Normalize makes a caller-supplied word list safe for stitching: text is
// trimmed, empty words are dropped, words are sorted by start and every word
// whose end is not after its start gets an inferred end. The input slice is
// not modified.
func Normalize(words []types.TimedWord) []types.TimedWord {
	out := make([]types.TimedWord, 0, len(words))
	for _, w := range words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" || w.Start < 0 {
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return nil
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := range out {
		if out[i].End > out[i].Start {
			continue
		}
		out[i].End = inferredEnd(out[i].Start, nextStart(out, i))
	}
	return out
}

// inferEnds sorts by start and derives each end from the next word's start.
func inferEnds(raw []rawWord) []types.TimedWord {
	words := make([]types.TimedWord, 0, len(raw))
	for _, w := range raw {
		words = append(words, types.TimedWord{Text: w.text, Start: w.start})
	}
	return Normalize(words)
}

func nextStart(words []types.TimedWord, i int) time.Duration {
	if i+1 < len(words) {
		return words[i+1].Start
	}
	return -1
}

// inferredEnd is min(next, start+2s) when the next word starts later, else start+0.5s.
func inferredEnd(start, next time.Duration) time.Duration {
	if next > start {
		return min(next, start+maxWordSpan)
	}
	return start + defaultWordSpan
}

// Text flattens timed words into a single transcript string.
func Text(words []types.TimedWord) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// Between returns the words whose start lies in [start, end). words must be
// sorted by start.
func Between(words []types.TimedWord, start, end time.Duration) []types.TimedWord {
	lo := sort.Search(len(words), func(i int) bool { return words[i].Start >= start })
	hi := sort.Search(len(words), func(i int) bool { return words[i].Start >= end })
	if hi <= lo {
		return nil
	}
	return words[lo:hi]
}
