package ffmpeg

import (
	"strconv"
	"strings"

	"github.com/forPelevin/hookcut/internal/domain/render"
)

// FilterGraph renders plan stages as an ffmpeg -filter_complex string.
// fontFile is used for every caption stage.
func FilterGraph(plan render.Plan, fontFile string) string {
	chains := make([]string, 0, len(plan.Stages))
	for _, st := range plan.Stages {
		var b strings.Builder
		for _, in := range st.Inputs {
			b.WriteString("[" + in + "]")
		}
		if st.Caption != nil {
			b.WriteString(drawtext(*st.Caption, fontFile))
		} else {
			filters := make([]string, 0, len(st.Filters))
			for _, f := range st.Filters {
				filters = append(filters, filterString(f))
			}
			b.WriteString(strings.Join(filters, ","))
		}
		for _, out := range st.Outputs {
			b.WriteString("[" + out + "]")
		}
		chains = append(chains, b.String())
	}
	return strings.Join(chains, ";")
}

func filterString(f render.Filter) string {
	if len(f.Args) == 0 {
		return f.Name
	}
	return f.Name + "=" + strings.Join(f.Args, ":")
}

func drawtext(c render.CaptionOverlay, fontFile string) string {
	s := c.Style
	opts := []string{
		"text='" + escapeText(c.Text) + "'",
		"expansion=none",
		"enable='between(t," + fmtSeconds(c.Start) + "," + fmtSeconds(c.End) + ")'",
	}
	if fontFile != "" {
		opts = append(opts, "fontfile='"+escapeFilterPath(fontFile)+"'")
	}
	opts = append(opts,
		"fontsize="+strconv.Itoa(s.FontSize),
		"fontcolor="+color(s.Color),
		"borderw="+strconv.Itoa(s.BorderWidth),
		"bordercolor="+color(s.BorderColor),
		"x=(w-text_w)/2",
		"y=h-(h/"+strconv.Itoa(max(s.MarginDivisor, 1))+")",
	)
	return "drawtext=" + strings.Join(opts, ":")
}

// escapeText prepares caption text for a single-quoted drawtext value.
// Single quotes cannot appear inside the quotes, so they become typographic
// apostrophes.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "’")
	s = strings.ReplaceAll(s, ":", "\\:")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// color converts #RRGGBB to ffmpeg's 0xRRGGBB; names pass through.
func color(c string) string {
	if strings.HasPrefix(c, "#") {
		return "0x" + c[1:]
	}
	return c
}
