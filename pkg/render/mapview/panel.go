package mapview

import (
	"bytes"
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/schoolmaps/overcrowding/pkg/heatmap"
)

const (
	panelX      = 16.0
	panelY      = 24.0
	lineHeight  = 18.0
	sectionGap  = 10.0
	swatchW     = 36.0
	swatchH     = 12.0
	legendInset = 16.0
)

var printer = message.NewPrinter(language.English)

// count formats a head count with thousands separators.
func count(v float64) string {
	return printer.Sprintf("%d", int64(math.Round(v)))
}

// renderStats draws the county statistics, followed by the focused
// cluster and school when there is one.
func renderStats(buf *bytes.Buffer, m *Map, cluster, school string) {
	fmt.Fprintf(buf, `  <g class="stats" transform="translate(%s,%s)">`+"\n", num(panelX), num(panelY))

	y := 0.0
	line := func(class, s string) {
		if class != "" {
			fmt.Fprintf(buf, `    <text class="%s" y="%s">%s</text>`+"\n", class, num(y), escape(s))
		} else {
			fmt.Fprintf(buf, `    <text y="%s">%s</text>`+"\n", num(y), escape(s))
		}
		y += lineHeight
	}

	sum := m.Summary
	line("title", "County")
	line("", fmt.Sprintf("Enrollment: %s (%d%%)", count(sum.Enrollment), sum.Percent))
	line("", "Capacity: "+count(sum.Capacity))
	line("", printer.Sprintf("Over capacity: %d of %d schools (%d%%)", sum.OverEnrolled, sum.Schools, sum.OverPercent))

	// The script redraws this group on every click.
	fmt.Fprintf(buf, `    <g id="selection-stats" transform="translate(0,%s)" data-line="%s" data-gap="%s">`+"\n",
		num(y), num(lineHeight), num(sectionGap))
	y = 0
	section := func(s heatmap.Stats) {
		y += sectionGap
		line("title", s.Name)
		if !s.Defined {
			line("", "No capacity data")
			return
		}
		line("", fmt.Sprintf("Enrollment: %s (%d%%)", count(s.Enrollment), s.Percent))
		line("", "Capacity: "+count(s.Capacity))
	}
	if c, ok := m.Cluster(cluster); ok {
		section(c.Stats)
	}
	if s, ok := m.School(school); ok {
		section(s.Stats)
	}
	buf.WriteString("    </g>\n")

	buf.WriteString("  </g>\n")
}

// renderLegend draws the color ramp in the bottom right corner.
func renderLegend(buf *bytes.Buffer, m *Map) {
	if len(m.Legend) == 0 {
		return
	}
	x := m.Width - float64(len(m.Legend))*swatchW - legendInset
	y := m.Height - legendInset - swatchH - lineHeight
	fmt.Fprintf(buf, `  <g class="legend" transform="translate(%s,%s)">`+"\n", num(x), num(y))
	for i, e := range m.Legend {
		sx := float64(i) * swatchW
		fmt.Fprintf(buf, `    <rect x="%s" width="%s" height="%s" fill="%s"/>`+"\n", num(sx), num(swatchW), num(swatchH), e.Color)
		fmt.Fprintf(buf, `    <text x="%s" y="%s" text-anchor="middle">%d%%</text>`+"\n", num(sx+swatchW/2), num(swatchH+lineHeight-4), e.Percent)
	}
	buf.WriteString("  </g>\n")
}
