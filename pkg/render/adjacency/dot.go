package adjacency

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/schoolmaps/overcrowding/pkg/geo"
	"github.com/schoolmaps/overcrowding/pkg/heatmap"
	"github.com/schoolmaps/overcrowding/pkg/render"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds the percent of capacity under each cluster name.
	Detailed bool
}

// ToDOT converts clusters and their shared borders to an undirected
// Graphviz graph. Nodes are filled with the heatmap's cluster color; with a
// nil heatmap they are white. Edges naming an unknown cluster are dropped.
func ToDOT(clusters []geo.Cluster, edges []geo.Edge, hm *heatmap.Heatmap, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=ellipse, style=filled, fillcolor=white, fontsize=18, margin=\"0.15,0.05\"];\n")
	buf.WriteString("  edge [color=\"#666666\"];\n")
	buf.WriteString("\n")

	known := make(map[string]bool, len(clusters))
	for _, c := range clusters {
		known[c.ID] = true
		attrs := []string{fmt.Sprintf("label=%q", fmtLabel(c, hm, opts.Detailed))}
		if hm != nil {
			attrs = append(attrs, fmt.Sprintf("fillcolor=%q", hm.ClusterColor(c.ID).Hex()))
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", c.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range edges {
		if !known[e.A] || !known[e.B] {
			continue
		}
		fmt.Fprintf(&buf, "  %q -- %q;\n", e.A, e.B)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(c geo.Cluster, hm *heatmap.Heatmap, detailed bool) string {
	name := c.Name
	if name == "" {
		name = c.ID
	}
	if !detailed || hm == nil {
		return name
	}
	st, err := hm.ClusterStats(c.ID)
	if err != nil || !st.Defined {
		return name + "\nno data"
	}
	return fmt.Sprintf("%s\n%d%%", name, st.Percent)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg tag with a plain
// pixel-sized one.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
