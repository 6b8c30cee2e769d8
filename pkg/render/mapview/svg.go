package mapview

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/schoolmaps/overcrowding/pkg/heatmap"
)

// teardrop is a school marker with its tip at the origin.
const teardrop = "M0,0 c -5,-7 -5,-14 -5,-15 c 0,-7 10,-7 10,0 c 0,1 0,8 -5,15 z"

const baseStrokeWidth = 1.5

const mapCSS = `
    .background { fill: #fff; }
    .cluster { stroke: #fff; stroke-linejoin: round; cursor: pointer; transition: stroke 0.2s ease; }
    .cluster:hover { stroke: #999; }
    .cluster.active { stroke: #333; }
    .borders { fill: none; stroke: #fff; stroke-linejoin: round; pointer-events: none; }
    .school { fill: #fff; stroke-width: 2; cursor: pointer; }
    .school.active { fill: #333; }
    .school.hidden { display: none; }
    .stats text, .legend text { font-family: sans-serif; font-size: 12px; fill: #333; }
    .stats .title { font-weight: bold; font-size: 14px; }`

const mapJS = `
    (function() {
      var vp = document.getElementById('viewport');
      var overview = vp.getAttribute('transform');
      var all = vp.ownerSVGElement.dataset.allSchools === 'true';
      var panel = document.getElementById('selection-stats');
      function place(k) {
        document.querySelectorAll('.school').forEach(s => s.setAttribute('transform',
          'translate(' + s.dataset.x + ',' + s.dataset.y + ')scale(' + (1 / k) + ')'));
      }
      function line(cls, y, text) {
        var t = document.createElementNS('http://www.w3.org/2000/svg', 'text');
        if (cls) t.setAttribute('class', cls);
        t.setAttribute('y', String(y));
        t.textContent = text;
        panel.appendChild(t);
      }
      function describe(els) {
        if (!panel) return;
        var lh = parseFloat(panel.dataset.line), gap = parseFloat(panel.dataset.gap), y = 0;
        panel.replaceChildren();
        els.forEach(el => {
          y += gap;
          line('title', y, el.dataset.name);
          y += lh;
          var rows = el.dataset.percent === undefined ? ['No capacity data'] : [
            'Enrollment: ' + el.dataset.enrollment + ' (' + el.dataset.percent + '%)',
            'Capacity: ' + el.dataset.capacity];
          rows.forEach(r => { line('', y, r); y += lh; });
        });
      }
      function focus(el) {
        var on = el !== null && !el.classList.contains('active');
        document.querySelectorAll('.cluster').forEach(c => c.classList.toggle('active', on && c === el));
        document.querySelectorAll('.school').forEach(s => {
          s.classList.toggle('hidden', !all && (!on || s.dataset.cluster !== el.dataset.id));
          s.classList.remove('active');
        });
        var k = on ? parseFloat(el.dataset.k) : 1;
        vp.setAttribute('transform', on ? el.dataset.zoom : overview);
        vp.setAttribute('stroke-width', String(1.5 / k));
        place(k);
        describe(on ? [el] : []);
      }
      document.querySelectorAll('.cluster').forEach(c => c.addEventListener('click', () => focus(c)));
      document.querySelectorAll('.school').forEach(s => s.addEventListener('click', ev => {
        ev.stopPropagation();
        var c = document.getElementById('cluster-' + s.dataset.cluster);
        if (c && !c.classList.contains('active')) focus(c);
        var on = !s.classList.contains('active');
        document.querySelectorAll('.school').forEach(o => o.classList.toggle('active', on && o === s));
        var shown = c ? [c] : [];
        describe(on ? shown.concat([s]) : shown);
      }));
      document.querySelector('.background').addEventListener('click', () => focus(null));
    })();`

// SVGOption configures [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	cluster    string
	school     string
	allSchools bool
	legend     bool
	stats      bool
	script     bool
}

// WithFocus zooms to cluster and highlights school within it. An empty
// cluster with a school focuses the school's own cluster. Unknown IDs are
// ignored.
func WithFocus(cluster, school string) SVGOption {
	return func(r *svgRenderer) { r.cluster, r.school = cluster, school }
}

// WithAllSchools draws every school marker, not only the focused cluster's.
func WithAllSchools() SVGOption { return func(r *svgRenderer) { r.allSchools = true } }
func WithLegend() SVGOption     { return func(r *svgRenderer) { r.legend = true } }
func WithStats() SVGOption      { return func(r *svgRenderer) { r.stats = true } }

// WithoutScript omits the click handling script, for rasterized output.
func WithoutScript() SVGOption { return func(r *svgRenderer) { r.script = false } }

func newSVGRenderer(opts ...SVGOption) svgRenderer {
	r := svgRenderer{script: true}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// focus resolves the requested focus against the map.
func (r svgRenderer) focus(m *Map) (cluster, school string) {
	if s, ok := m.School(r.school); ok {
		school = s.ID
		if r.cluster == "" {
			r.cluster = s.Cluster
		}
		if s.Cluster != r.cluster {
			school = ""
		}
	}
	if _, ok := m.Cluster(r.cluster); !ok {
		return "", ""
	}
	return r.cluster, school
}

// RenderSVG renders the map as a standalone SVG document.
func RenderSVG(m *Map, opts ...SVGOption) []byte {
	r := newSVGRenderer(opts...)
	cluster, school := r.focus(m)
	zoom := m.Zoom(cluster)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" class="overcrowding-map" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f"`,
		m.Width, m.Height, m.Width, m.Height)
	if r.allSchools {
		buf.WriteString(` data-all-schools="true"`)
	}
	buf.WriteString(">\n")
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", mapCSS)
	fmt.Fprintf(&buf, `  <rect class="background" width="%.1f" height="%.1f"/>`+"\n", m.Width, m.Height)

	fmt.Fprintf(&buf, `  <g id="viewport" transform="%s" stroke-width="%s">`+"\n",
		zoom.Transform(m.Width, m.Height), num(baseStrokeWidth/zoom.K))
	renderClusters(&buf, m, cluster)
	if m.Borders != "" {
		fmt.Fprintf(&buf, `    <path class="borders" d="%s"/>`+"\n", m.Borders)
	}
	renderSchools(&buf, m, r, cluster, school, zoom.K)
	buf.WriteString("  </g>\n")

	if r.stats {
		renderStats(&buf, m, cluster, school)
	}
	if r.legend {
		renderLegend(&buf, m)
	}
	if r.script {
		fmt.Fprintf(&buf, "  <script type=\"text/javascript\"><![CDATA[%s\n  ]]></script>\n", mapJS)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func renderClusters(buf *bytes.Buffer, m *Map, focus string) {
	for _, c := range m.Clusters {
		class := "cluster"
		if c.ID == focus {
			class += " active"
		}
		fmt.Fprintf(buf, `    <path id="cluster-%s" class="%s" data-id="%s" data-zoom="%s" data-k="%s"%s d="%s" fill="%s">`,
			escape(c.ID), class, escape(c.ID), c.Zoom.Transform(m.Width, m.Height), num(c.Zoom.K), statsData(c.Stats), c.Path, c.Color)
		fmt.Fprintf(buf, "<title>%s</title></path>\n", escape(label(c.Stats)))
	}
}

// renderSchools draws the markers of the focused cluster, or every marker
// with allSchools. With a script the other markers are written hidden.
func renderSchools(buf *bytes.Buffer, m *Map, r svgRenderer, cluster, focus string, k float64) {
	for _, s := range m.Schools {
		shown := r.allSchools || (cluster != "" && s.Cluster == cluster)
		if !shown && !r.script {
			continue
		}
		class := "school"
		if !shown {
			class += " hidden"
		}
		if s.ID == focus {
			class += " active"
		}
		fmt.Fprintf(buf, `    <path id="school-%s" class="%s" data-id="%s" data-cluster="%s" data-x="%s" data-y="%s"%s transform="translate(%s,%s)scale(%s)" d="%s" stroke="%s">`,
			escape(s.ID), class, escape(s.ID), escape(s.Cluster), num(s.X), num(s.Y), statsData(s.Stats), num(s.X), num(s.Y), num(1/k), teardrop, s.Color)
		fmt.Fprintf(buf, "<title>%s</title></path>\n", escape(label(s.Stats)))
	}
}

// statsData returns the data attributes the script reads to fill the
// selection panel.
func statsData(s heatmap.Stats) string {
	attrs := fmt.Sprintf(` data-name="%s"`, escape(s.Name))
	if s.Defined {
		attrs += fmt.Sprintf(` data-enrollment="%s" data-capacity="%s" data-percent="%d"`,
			count(s.Enrollment), count(s.Capacity), s.Percent)
	}
	return attrs
}

// label formats the hover text: name, enrollment and percent of capacity.
func label(s heatmap.Stats) string {
	if !s.Defined {
		return s.Name + ": no data"
	}
	return fmt.Sprintf("%s: %s (%d%%)", s.Name, count(s.Enrollment), s.Percent)
}

// escape escapes s for element text and quoted attribute values.
func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
