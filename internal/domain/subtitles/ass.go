// Package subtitles writes caption chunks as an ASS sidecar so players and
// editors can show or restyle captions without the burned-in copy.
package subtitles

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/types"
)

// RenderASS renders chunks (clip clock) with the given style on a
// width x height canvas.
func RenderASS(chunks []types.CaptionChunk, style render.CaptionStyle, width, height int) string {
	var b strings.Builder
	b.WriteString(assHeader(style, width, height))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range chunks {
		text := sanitizeASS(c.Text)
		if text == "" || c.End <= c.Start {
			continue
		}
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(c.Start))
		b.WriteString(",")
		b.WriteString(assTime(c.End))
		b.WriteString(",Hook,,0,0,0,,")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

func assHeader(style render.CaptionStyle, width, height int) string {
	marginV := 0
	if style.MarginDivisor > 0 {
		marginV = height / style.MarginDivisor
	}
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", width)
	fmt.Fprintf(&b, "PlayResY: %d\n", height)
	b.WriteString("ScaledBorderAndShadow: yes\n\n")
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Hook,%s,%d,%s,%s,%s,&H64000000,1,0,0,0,100,100,0,0,1,%d,0,2,40,40,%d,1\n",
		strings.ReplaceAll(style.FontFamily, ",", " "),
		style.FontSize,
		assColor(style.Color),
		assColor(style.Color),
		assColor(style.BorderColor),
		style.BorderWidth,
		marginV,
	)
	return b.String()
}

var namedColors = map[string]string{
	"white":   "FFFFFF",
	"black":   "000000",
	"yellow":  "FFFF00",
	"red":     "FF0000",
	"green":   "00FF00",
	"blue":    "0000FF",
	"cyan":    "00FFFF",
	"magenta": "FF00FF",
}

// assColor converts a color name or #RRGGBB / 0xRRGGBB to ASS &H00BBGGRR.
// Unknown names fall back to white.
func assColor(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	hex, ok := namedColors[c]
	if !ok {
		hex = strings.TrimPrefix(strings.TrimPrefix(c, "#"), "0x")
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil || len(hex) != 6 {
			hex = namedColors["white"]
		}
	}
	hex = strings.ToUpper(hex)
	return "&H00" + hex[4:6] + hex[2:4] + hex[0:2]
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
