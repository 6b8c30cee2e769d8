// Package render converts rendered maps between output formats.
//
// # Overview
//
// The map and the cluster adjacency diagram are produced as SVG by their
// sinks:
//
//   - Choropleth map with school markers (in [mapview] subpackage)
//   - Cluster adjacency diagram (in [adjacency] subpackage)
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg).
//
//	svg := mapview.RenderSVG(m, mapview.WithFocus("X", ""))
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0)  // 2x scale
//
// [mapview]: github.com/schoolmaps/overcrowding/pkg/render/mapview
// [adjacency]: github.com/schoolmaps/overcrowding/pkg/render/adjacency
package render
