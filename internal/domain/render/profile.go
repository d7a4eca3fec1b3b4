package render

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type MediaStrategy string

const (
	// FirstSegmentOnly extracts media for the first segment only. Captions of
	// later segments fall outside the rendered media and are left out.
	FirstSegmentOnly MediaStrategy = "first_segment"
	// Concat extracts every segment as its own input and joins them with the
	// engine's concat filter before the layout stages.
	Concat MediaStrategy = "concat"
)

// CaptionStyle is the logical look of burned-in captions. Turning FontFamily
// into a font file is the render engine adapter's job.
type CaptionStyle struct {
	FontFamily  string `yaml:"font_family" json:"font_family"`
	FontSize    int    `yaml:"font_size" json:"font_size"`
	Color       string `yaml:"color" json:"color"`
	BorderWidth int    `yaml:"border_width" json:"border_width"`
	BorderColor string `yaml:"border_color" json:"border_color"`
	// Captions sit at h - h/MarginDivisor.
	MarginDivisor int `yaml:"margin_divisor" json:"margin_divisor"`
}

type Output struct {
	Container    string `yaml:"container" json:"container"`
	VideoCodec   string `yaml:"video_codec" json:"video_codec"`
	AudioCodec   string `yaml:"audio_codec" json:"audio_codec"`
	Preset       string `yaml:"preset" json:"preset"`
	CRF          int    `yaml:"crf" json:"crf"`
	AudioBitrate string `yaml:"audio_bitrate" json:"audio_bitrate"`
}

// Profile holds everything about a render that does not depend on the clip.
type Profile struct {
	Width            int           `yaml:"width" json:"width"`
	Height           int           `yaml:"height" json:"height"`
	BlurRadius       int           `yaml:"blur_radius" json:"blur_radius"`
	BlurPower        int           `yaml:"blur_power" json:"blur_power"`
	CaptionGroupSize int           `yaml:"caption_group_size" json:"caption_group_size"`
	MediaStrategy    MediaStrategy `yaml:"media_strategy" json:"media_strategy"`
	Captions         CaptionStyle  `yaml:"captions" json:"captions"`
	Output           Output        `yaml:"output" json:"output"`
}

func DefaultProfile() Profile {
	return Profile{
		Width:            720,
		Height:           1280,
		BlurRadius:       20,
		BlurPower:        10,
		CaptionGroupSize: 2,
		MediaStrategy:    FirstSegmentOnly,
		Captions: CaptionStyle{
			FontFamily:    "DejaVu Sans",
			FontSize:      30,
			Color:         "white",
			BorderWidth:   2,
			BorderColor:   "black",
			MarginDivisor: 5,
		},
		Output: Output{
			Container:    "mp4",
			VideoCodec:   "libx264",
			AudioCodec:   "aac",
			Preset:       "veryfast",
			CRF:          18,
			AudioBitrate: "192k",
		},
	}
}

// LoadProfile reads a YAML profile. Keys missing from the file keep their
// DefaultProfile values.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read render profile: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parse render profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("render profile %s: %w", path, err)
	}
	return p, nil
}

var (
	reColor = regexp.MustCompile(`^(#[0-9a-fA-F]{6}|0x[0-9a-fA-F]{6}|[a-zA-Z]+)$`)
	reToken = regexp.MustCompile(`^[A-Za-z0-9_.+-]+$`)
)

type field struct{ name, value string }

func (p Profile) Validate() error {
	var errs []error
	if p.Width <= 0 || p.Height <= 0 {
		errs = append(errs, fmt.Errorf("frame size must be positive, got %dx%d", p.Width, p.Height))
	}
	if p.Width%2 != 0 || p.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("frame size must be even for yuv420p, got %dx%d", p.Width, p.Height))
	}
	if p.BlurRadius < 0 || p.BlurPower < 0 {
		errs = append(errs, errors.New("blur radius and power must be >= 0"))
	}
	if p.CaptionGroupSize < 0 {
		errs = append(errs, errors.New("caption_group_size must be >= 0"))
	}
	switch p.MediaStrategy {
	case FirstSegmentOnly, Concat:
	default:
		errs = append(errs, fmt.Errorf("unknown media_strategy %q", p.MediaStrategy))
	}

	c := p.Captions
	if strings.TrimSpace(c.FontFamily) == "" {
		errs = append(errs, errors.New("captions.font_family is required"))
	}
	if c.FontSize <= 0 {
		errs = append(errs, errors.New("captions.font_size must be > 0"))
	}
	if c.BorderWidth < 0 {
		errs = append(errs, errors.New("captions.border_width must be >= 0"))
	}
	if c.MarginDivisor <= 0 {
		errs = append(errs, errors.New("captions.margin_divisor must be > 0"))
	}
	for _, f := range []field{{"captions.color", c.Color}, {"captions.border_color", c.BorderColor}} {
		if !reColor.MatchString(f.value) {
			errs = append(errs, fmt.Errorf("%s %q is not a color name or hex value", f.name, f.value))
		}
	}

	o := p.Output
	for _, f := range []field{
		{"output.container", o.Container},
		{"output.video_codec", o.VideoCodec},
		{"output.audio_codec", o.AudioCodec},
		{"output.preset", o.Preset},
		{"output.audio_bitrate", o.AudioBitrate},
	} {
		if !reToken.MatchString(f.value) {
			errs = append(errs, fmt.Errorf("%s %q is invalid", f.name, f.value))
		}
	}
	if o.CRF < 0 || o.CRF > 51 {
		errs = append(errs, fmt.Errorf("output.crf must be in [0,51], got %d", o.CRF))
	}
	return errors.Join(errs...)
}
