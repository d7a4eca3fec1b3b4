package types

import (
	"math"
	"time"
)

// TimedWord is one transcript word on the source clock.
type TimedWord struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Segment is a contiguous [Start, End) range of the source video.
type Segment struct {
	Start time.Duration
	End   time.Duration
}

func (s Segment) Duration() time.Duration { return s.End - s.Start }

// HookCandidate is an oracle proposal. Segments are authoritative for rendering;
// StartTime and EndTime are advisory only.
type HookCandidate struct {
	StartTime     time.Duration
	EndTime       time.Duration
	Segments      []Segment
	ViralityScore float64
	Type          string
	Title         string
}

// CaptionChunk is a caption on the output clock (0 at clip start).
type CaptionChunk struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// ClipSpec is a resolved, renderable clip.
type ClipSpec struct {
	SourceURL     string
	Segments      []Segment
	TotalDuration time.Duration
	Captions      []CaptionChunk
	ViralityScore float64
	Type          string
	Title         string
}

// Transcript is what the hook oracle receives.
type Transcript struct {
	Text  string
	Words []TimedWord
}

// TranscriptPayload is what a transcript source returns: a nested
// timed-caption payload (json3), words already timed by local ASR, or a plain
// description when no captions exist.
type TranscriptPayload struct {
	JSON3       []byte
	Words       []TimedWord
	Description string
}

// WhisperTranscript mirrors the whisper.cpp -oj output.
type WhisperTranscript struct {
	Segments []WhisperSegment `json:"segments"`
}

type WhisperSegment struct {
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Text  string        `json:"text"`
	Words []WhisperWord `json:"words,omitempty"`
}

type WhisperWord struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// CaptionRecord is the persisted form of a CaptionChunk.
type CaptionRecord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ClipRecord is the shape an external persistence layer stores per clip.
type ClipRecord struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	StartTime         float64         `json:"start_time"`
	EndTime           float64         `json:"end_time"`
	ViralityScore     float64         `json:"virality_score"`
	TranscriptSegment []CaptionRecord `json:"transcript_segment"`
	VideoURL          string          `json:"video_url"`
}

// NewClipRecord converts a rendered clip into its persisted shape. rendered
// holds the source windows that were actually extracted and captions the
// chunks that were burned in, so the record matches the output file.
func NewClipRecord(id string, spec ClipSpec, rendered []Segment, captions []CaptionChunk, videoURL string) ClipRecord {
	rec := ClipRecord{
		ID:                id,
		Title:             spec.Title,
		ViralityScore:     spec.ViralityScore,
		TranscriptSegment: make([]CaptionRecord, 0, len(captions)),
		VideoURL:          videoURL,
	}
	if len(rendered) > 0 {
		rec.StartTime = Seconds(rendered[0].Start)
		rec.EndTime = Seconds(rendered[len(rendered)-1].End)
	}
	for _, c := range captions {
		rec.TranscriptSegment = append(rec.TranscriptSegment, CaptionRecord{
			Text:  c.Text,
			Start: Seconds(c.Start),
			End:   Seconds(c.End),
		})
	}
	return rec
}

type Manifest struct {
	Input    string         `json:"input"`
	Hooks    int            `json:"hooks"`
	Rejected int            `json:"rejected"`
	Rendered int            `json:"rendered"`
	Clips    []ManifestClip `json:"clips"`
}

type ManifestClip struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Type          string           `json:"type"`
	ViralityScore float64          `json:"virality_score"`
	Segments      []ManifestWindow `json:"segments"`
	TotalSec      float64          `json:"total_sec"`
	Captions      []CaptionRecord  `json:"captions"`
	File          string           `json:"file,omitempty"`
	Subtitles     string           `json:"subtitles,omitempty"`
	Thumbnail     string           `json:"thumbnail,omitempty"`
	Error         string           `json:"error,omitempty"`
}

type ManifestWindow struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

// Dur converts float seconds to a Duration.
func Dur(sec float64) time.Duration { return time.Duration(math.Round(sec * float64(time.Second))) }

// Seconds converts a Duration to seconds rounded to 0.01.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
