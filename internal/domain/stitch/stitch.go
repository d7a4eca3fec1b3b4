// Package stitch concatenates source segments into one output timeline and
// re-times transcript words onto it.
package stitch

import (
	"time"

	"github.com/forPelevin/hookcut/internal/domain/captions"
	"github.com/forPelevin/hookcut/internal/types"
)

type Result struct {
	TotalDuration time.Duration
	// Words are the selected words on the output clock, in segment order.
	Words    []types.TimedWord
	Captions []types.CaptionChunk
}

// Stitch walks segments in list order, keeping a running output cursor. Words
// whose start lies in [seg.Start, seg.End) are rebased onto the segment's local
// clock and shifted by the cursor; the cursor then advances by the segment's
// full duration, captioned or not. Caption order follows segment order, not
// source time.
//
// words must be sorted by start. A word's end is clamped to its segment's end
// so captions never spill into the next segment's window.
func Stitch(segments []types.Segment, words []types.TimedWord, groupSize int) Result {
	retimed, total := Retime(segments, words)
	return Result{
		TotalDuration: total,
		Words:         retimed,
		Captions:      captions.Chunk(retimed, groupSize),
	}
}

// Apply fills a resolved spec's timeline and captions from the source words.
// Without any word timings, text (the plain transcript) is spread evenly over
// the timeline instead.
func Apply(spec types.ClipSpec, words []types.TimedWord, text string, groupSize int) types.ClipSpec {
	res := Stitch(spec.Segments, words, groupSize)
	spec.TotalDuration = res.TotalDuration
	spec.Captions = res.Captions
	if len(words) == 0 {
		spec.Captions = captions.ChunkPlain(text, res.TotalDuration, captions.DefaultPlainChunkSize)
	}
	return spec
}

// Retime returns the re-timed words and the total output duration.
func Retime(segments []types.Segment, words []types.TimedWord) ([]types.TimedWord, time.Duration) {
	var (
		cursor time.Duration
		out    []types.TimedWord
	)
	for _, seg := range segments {
		for _, w := range words {
			if w.Start < seg.Start || w.Start >= seg.End {
				continue
			}
			end := min(w.End, seg.End)
			out = append(out, types.TimedWord{
				Text:  w.Text,
				Start: w.Start - seg.Start + cursor,
				End:   end - seg.Start + cursor,
			})
		}
		cursor += seg.End - seg.Start
	}
	return out, cursor
}

// OutputOffset is where segment i begins on the output clock.
func OutputOffset(segments []types.Segment, i int) time.Duration {
	var off time.Duration
	for _, seg := range segments[:min(i, len(segments))] {
		off += seg.End - seg.Start
	}
	return off
}
