package captions

import (
	"strings"
	"time"

	"github.com/forPelevin/hookcut/internal/types"
)

const (
	// DefaultGroupSize keeps timed captions short and punchy.
	DefaultGroupSize = 2
	// DefaultPlainChunkSize is used by the untimed fallback.
	DefaultPlainChunkSize = 3
)

// Chunk groups consecutive words into runs of groupSize. Each chunk spans from
// its first word's start to its last word's end. Input order is preserved.
func Chunk(words []types.TimedWord, groupSize int) []types.CaptionChunk {
	if len(words) == 0 {
		return nil
	}
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}

	out := make([]types.CaptionChunk, 0, (len(words)+groupSize-1)/groupSize)
	for i := 0; i < len(words); i += groupSize {
		group := words[i:min(i+groupSize, len(words))]
		parts := make([]string, 0, len(group))
		for _, w := range group {
			parts = append(parts, w.Text)
		}
		out = append(out, types.CaptionChunk{
			Text:  strings.Join(parts, " "),
			Start: group[0].Start,
			End:   group[len(group)-1].End,
		})
	}
	return out
}

// ChunkPlain is the lower-fidelity path for transcripts without word timings:
// the text is split into chunkSize-word groups and totalDuration is spread
// evenly across them. Display times are approximations, not speech timings.
func ChunkPlain(text string, totalDuration time.Duration, chunkSize int) []types.CaptionChunk {
	words := strings.Fields(text)
	if len(words) == 0 || totalDuration <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultPlainChunkSize
	}

	var groups []string
	for i := 0; i < len(words); i += chunkSize {
		groups = append(groups, strings.Join(words[i:min(i+chunkSize, len(words))], " "))
	}

	n := time.Duration(len(groups))
	out := make([]types.CaptionChunk, 0, len(groups))
	for i, g := range groups {
		idx := time.Duration(i)
		out = append(out, types.CaptionChunk{
			Text:  g,
			Start: totalDuration * idx / n,
			End:   totalDuration * (idx + 1) / n,
		})
	}
	return out
}

// Generate prefers real word timings and falls back to ChunkPlain over text.
func Generate(words []types.TimedWord, text string, totalDuration time.Duration) []types.CaptionChunk {
	if len(words) > 0 {
		return Chunk(words, DefaultGroupSize)
	}
	return ChunkPlain(text, totalDuration, DefaultPlainChunkSize)
}
