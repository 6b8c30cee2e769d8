// Package pkg provides the libraries behind the overcrowding map.
//
// # Overview
//
// Overcrowding joins a TopoJSON file of school clusters and school points
// with a capacity table, computes enrollment over capacity for every
// school, cluster and the county, and draws the result as a choropleth.
// The pkg directory is organized into four areas:
//
//  1. Domain - [capacity], [scale], [colorize], [heatmap], [selection]
//  2. Geometry - [geo] (topology decoding, projection, containment)
//  3. Rendering - [render/mapview], [render/adjacency], [io]
//  4. Infrastructure - [pipeline], [source], [cache], [session], [httputil]
//
// # Architecture
//
// The typical data flow:
//
//	TopoJSON + capacity CSV
//	         ↓
//	    [source] package (fetch files or URLs)
//	         ↓
//	    [geo] + [capacity] packages (decode, join, aggregate)
//	         ↓
//	    [heatmap] package (scale bounds + colors)
//	         ↓
//	    [render/mapview] package (SVG, JSON, PNG, PDF)
//
// # Quick Start
//
// Build a dataset and render the map:
//
//	opts := pipeline.Options{Topology: "clusters.topojson", Table: "capacity.csv"}
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, nil)
//	result, err := runner.Execute(ctx, opts)
//	svg := result.Artifacts[pipeline.FormatSVG]
//
// Or step by step:
//
//	table, _ := capacity.ReadTable(f)
//	result := capacity.Aggregate(table.Records(members, "2016"))
//	hm, _ := heatmap.New(result, heatmap.Options{ClusterFloor: 0.75})
//	fill := hm.ClusterColor("12")
//
// # Main Packages
//
// [capacity] - The capacity table and the ratio aggregation. Ratios are sums
// of enrollment over sums of capacity; a school contributes only when both
// figures are present and capacity is positive.
//
// [scale] - Min/max bounds over defined ratios, with an optional floor for
// the cluster scale.
//
// [colorize] - Linear and binned colorizers over named palettes or hex
// lists. The default heat scale runs green to red.
//
// [heatmap] - Combines ratios, bounds and a colorizer into per-cluster and
// per-school colors, panel statistics and legend entries.
//
// [selection] - The none → cluster → school selection state machine shared
// by the SVG viewer, the terminal browser and the HTTP sessions.
//
// [pipeline] - Load → build → render orchestration with an artifact cache,
// used by the CLI and the HTTP server alike.
//
// [session] - Server-side viewer sessions holding a selection state.
//
// # Testing
//
//	go test ./pkg/...
//
// [capacity]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/capacity
// [scale]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/scale
// [colorize]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/colorize
// [heatmap]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/heatmap
// [selection]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/selection
// [geo]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/geo
// [render/mapview]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/render/mapview
// [render/adjacency]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/render/adjacency
// [io]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/io
// [pipeline]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/pipeline
// [source]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/source
// [cache]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/cache
// [session]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/session
// [httputil]: https://pkg.go.dev/github.com/schoolmaps/overcrowding/pkg/httputil
package pkg
