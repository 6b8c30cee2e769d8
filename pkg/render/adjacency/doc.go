// Package adjacency renders the cluster adjacency diagram.
//
// # Overview
//
// Clusters that share a border are joined by an edge and every cluster
// node is filled with its overcrowding color, which makes it easy to spot
// neighborhoods where relief from an adjacent cluster is possible.
//
// # Usage
//
//	edges, err := topo.Adjacency("clusters", "id")
//	dot := adjacency.ToDOT(clusters, edges, hm, adjacency.Options{Detailed: true})
//	svg, err := adjacency.RenderSVG(ctx, dot)
//
// For PDF or PNG output:
//
//	pdf, err := adjacency.RenderPDF(ctx, dot)
//	png, err := adjacency.RenderPNG(ctx, dot, 2.0)  // 2x scale
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering (WebAssembly build of Graphviz; no system install required).
// PDF and PNG conversion go through rsvg-convert like the map sinks.
package adjacency
