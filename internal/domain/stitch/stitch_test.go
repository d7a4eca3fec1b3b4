package stitch

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/forPelevin/hookcut/internal/types"
)

func sec(s float64) time.Duration { return types.Dur(s) }

func TestStitch_SingleSegment(t *testing.T) {
	words := []types.TimedWord{
		{Text: "hi", Start: 0, End: sec(1)},
		{Text: "there", Start: sec(1), End: sec(2)},
		{Text: "world", Start: sec(5), End: sec(6)},
	}
	res := Stitch([]types.Segment{{Start: 0, End: sec(6)}}, words, 2)

	if res.TotalDuration != sec(6) {
		t.Fatalf("expected total 6s, got %v", res.TotalDuration)
	}
	want := []types.CaptionChunk{
		{Text: "hi there", Start: 0, End: sec(2)},
		{Text: "world", Start: sec(5), End: sec(6)},
	}
	if !reflect.DeepEqual(res.Captions, want) {
		t.Fatalf("unexpected captions:\n got %+v\nwant %+v", res.Captions, want)
	}
}

func TestStitch_SecondSegmentIsShiftedByFirst(t *testing.T) {
	segs := []types.Segment{
		{Start: 0, End: sec(5)},
		{Start: sec(100), End: sec(103)},
	}
	words := []types.TimedWord{{Text: "payoff", Start: sec(101), End: sec(101.5)}}

	res := Stitch(segs, words, 2)
	if len(res.Words) != 1 {
		t.Fatalf("expected 1 retimed word, got %+v", res.Words)
	}
	if res.Words[0].Start != sec(6) {
		t.Fatalf("expected output start 6s (local 1s + 5s), got %v", res.Words[0].Start)
	}
	if res.TotalDuration != sec(8) {
		t.Fatalf("expected total 8s, got %v", res.TotalDuration)
	}
}

func TestStitch_SegmentOrderBeatsSourceOrder(t *testing.T) {
	segs := []types.Segment{
		{Start: sec(120), End: sec(125)},
		{Start: 0, End: sec(5)},
	}
	words := []types.TimedWord{
		{Text: "setup", Start: sec(1), End: sec(2)},
		{Text: "payoff", Start: sec(121), End: sec(122)},
	}
	res := Stitch(segs, words, 1)
	if len(res.Captions) != 2 || res.Captions[0].Text != "payoff" || res.Captions[1].Text != "setup" {
		t.Fatalf("expected segment order, got %+v", res.Captions)
	}
	if res.Captions[1].Start != sec(6) {
		t.Fatalf("expected setup at 6s, got %v", res.Captions[1].Start)
	}
}

func TestStitch_SilentSegmentStillAdvances(t *testing.T) {
	segs := []types.Segment{
		{Start: sec(10), End: sec(20)},
		{Start: sec(30), End: sec(32)},
	}
	words := []types.TimedWord{{Text: "late", Start: sec(30), End: sec(31)}}
	res := Stitch(segs, words, 2)
	if len(res.Captions) != 1 || res.Captions[0].Start != sec(10) {
		t.Fatalf("expected caption at 10s after silent segment, got %+v", res.Captions)
	}
}

func TestStitch_ClampsWordEndToSegment(t *testing.T) {
	segs := []types.Segment{{Start: 0, End: sec(3)}, {Start: sec(50), End: sec(52)}}
	words := []types.TimedWord{
		{Text: "long", Start: sec(2.5), End: sec(4.5)},
		{Text: "tail", Start: sec(51.9), End: sec(53.9)},
	}
	res := Stitch(segs, words, 1)
	if res.Captions[0].End != sec(3) {
		t.Fatalf("expected first caption to end at segment boundary, got %v", res.Captions[0].End)
	}
	if res.Captions[1].End != res.TotalDuration {
		t.Fatalf("expected last caption clamped to total, got %v", res.Captions[1].End)
	}
}

func TestStitch_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		t.Run(fmt.Sprintf("iter=%d", iter), func(t *testing.T) {
			words := randomWords(rng, 300)
			segs := randomSegments(rng, 1+rng.Intn(5))

			res := Stitch(segs, words, 1+rng.Intn(3))

			// duration invariant
			var sum time.Duration
			for _, s := range segs {
				sum += s.End - s.Start
			}
			if res.TotalDuration != sum {
				t.Fatalf("total %v != sum %v", res.TotalDuration, sum)
			}

			// bounds
			for _, c := range res.Captions {
				if c.Start < 0 || c.Start >= c.End || c.End > res.TotalDuration {
					t.Fatalf("caption out of bounds: %+v (total %v)", c, res.TotalDuration)
				}
			}

			// words from segment i start at or after the offset of segment i
			idx := 0
			for i, s := range segs {
				off := OutputOffset(segs, i)
				for _, w := range words {
					if w.Start < s.Start || w.Start >= s.End {
						continue
					}
					if res.Words[idx].Start < off {
						t.Fatalf("word from segment %d starts at %v before offset %v", i, res.Words[idx].Start, off)
					}
					idx++
				}
			}
			if idx != len(res.Words) {
				t.Fatalf("expected %d words, got %d", idx, len(res.Words))
			}

			// idempotence
			again := Stitch(segs, words, 0)
			once := Stitch(segs, words, 0)
			if !reflect.DeepEqual(again, once) {
				t.Fatalf("stitch is not deterministic")
			}
		})
	}
}

func TestOutputOffset(t *testing.T) {
	segs := []types.Segment{{Start: 0, End: sec(5)}, {Start: sec(100), End: sec(103)}}
	if got := OutputOffset(segs, 0); got != 0 {
		t.Fatalf("offset 0 = %v", got)
	}
	if got := OutputOffset(segs, 1); got != sec(5) {
		t.Fatalf("offset 1 = %v", got)
	}
	if got := OutputOffset(segs, 9); got != sec(8) {
		t.Fatalf("offset past end = %v", got)
	}
}

func randomWords(rng *rand.Rand, n int) []types.TimedWord {
	out := make([]types.TimedWord, 0, n)
	var at time.Duration
	for i := 0; i < n; i++ {
		at += time.Duration(rng.Intn(1500)+1) * time.Millisecond
		out = append(out, types.TimedWord{
			Text:  fmt.Sprintf("w%d", i),
			Start: at,
			End:   at + time.Duration(rng.Intn(2500)+1)*time.Millisecond,
		})
	}
	return out
}

func randomSegments(rng *rand.Rand, n int) []types.Segment {
	out := make([]types.Segment, 0, n)
	for i := 0; i < n; i++ {
		start := time.Duration(rng.Intn(200_000)) * time.Millisecond
		out = append(out, types.Segment{
			Start: start,
			End:   start + time.Duration(rng.Intn(30_000)+1)*time.Millisecond,
		})
	}
	return out
}

func TestApply(t *testing.T) {
	spec := types.ClipSpec{Segments: []types.Segment{{Start: 0, End: sec(5)}, {Start: sec(100), End: sec(103)}}, Title: "t"}

	got := Apply(spec, []types.TimedWord{{Text: "payoff", Start: sec(101), End: sec(102)}}, "", 2)
	if got.TotalDuration != sec(8) || len(got.Captions) != 1 || got.Captions[0].Start != sec(6) {
		t.Fatalf("unexpected timed result %+v", got)
	}
	if got.Title != "t" {
		t.Fatalf("expected metadata to survive, got %+v", got)
	}

	got = Apply(spec, nil, "a b c d e f", 2)
	if len(got.Captions) != 2 || got.Captions[1].End != sec(8) {
		t.Fatalf("expected plain fallback over 8s, got %+v", got.Captions)
	}
}
