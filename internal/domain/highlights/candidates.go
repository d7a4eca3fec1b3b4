package highlights

import (
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/hookcut/internal/types"
)

// Candidate is one scored window of the transcript on the source clock.
type Candidate struct {
	Start  time.Duration
	End    time.Duration
	Text   string
	Scores Scores
}

// BuildCandidates slides windows over the timed words and scores every window
// whose length lies in [minClip, maxClip]. words must be sorted by start.
func BuildCandidates(words []types.TimedWord, minClip, maxClip time.Duration) []Candidate {
	if minClip <= 0 {
		minClip = time.Second
	}
	if maxClip <= 0 || maxClip < minClip || len(words) < 2 {
		return nil
	}

	// Caps keep runtime predictable on long transcripts.
	const (
		maxCandidates = 2000
		maxWordsInWin = 600
		maxStartCount = 140
		endStride     = 4
	)

	startStride := 1
	if len(words) > maxStartCount {
		startStride = (len(words) + maxStartCount - 1) / maxStartCount
	}
	starts := make([]int, 0, len(words)/startStride+2)
	for i := 0; i < len(words)-1; i += startStride {
		starts = append(starts, i)
	}
	// Late parts of the transcript still get a start even when downsampled.
	if last := len(words) - 2; len(starts) == 0 || starts[len(starts)-1] != last {
		starts = append(starts, last)
	}

	var out []Candidate
	for _, i := range starts {
		start := words[i].Start
		parts := make([]string, 0, 64)
		for j := i; j < len(words) && j-i <= maxWordsInWin; j++ {
			parts = append(parts, words[j].Text)
			if j == i || ((j-i)%endStride != 0 && j != len(words)-1) {
				continue
			}
			end := words[j].End
			win := end - start
			if win > maxClip {
				break
			}
			if win < minClip {
				continue
			}
			text := strings.Join(parts, " ")
			out = append(out, Candidate{Start: start, End: end, Text: text, Scores: Score(text)})
			if len(out) >= maxCandidates {
				return out
			}
		}
	}
	return out
}

// Top returns up to n highest-scoring candidates that do not overlap each
// other (with minGap between them), ordered by start.
func Top(cands []Candidate, n int, minGap time.Duration) []Candidate {
	if n <= 0 || len(cands) == 0 {
		return nil
	}
	best := append([]Candidate(nil), cands...)
	sort.SliceStable(best, func(i, j int) bool {
		si, sj := best[i].Scores.Total(), best[j].Scores.Total()
		if si == sj {
			return best[i].Start < best[j].Start
		}
		return si > sj
	})

	out := make([]Candidate, 0, n)
	for _, c := range best {
		if len(out) >= n {
			break
		}
		if overlapsAny(out, c, minGap) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func overlapsAny(existing []Candidate, c Candidate, minGap time.Duration) bool {
	for _, e := range existing {
		if c.Start < e.End+minGap && c.End > e.Start-minGap {
			return true
		}
	}
	return false
}
