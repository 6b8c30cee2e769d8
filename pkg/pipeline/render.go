package pipeline

import (
	"context"
	"fmt"

	"github.com/schoolmaps/overcrowding/pkg/render/adjacency"
	"github.com/schoolmaps/overcrowding/pkg/render/mapview"
)

// Render generates output artifacts in the requested formats. The focus
// (Cluster, School) is validated against the dataset first.
func Render(ctx context.Context, d *Dataset, opts Options) (map[string][]byte, error) {
	state, err := d.Focus(opts.Cluster, opts.School)
	if err != nil {
		return nil, err
	}

	var m *mapview.Map
	mapFor := func() (*mapview.Map, error) {
		if m == nil {
			var err error
			if m, err = d.Map(opts); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
	svgOpts := SVGOptions(opts, state.Cluster, state.School)

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatDOT:
			data = []byte(d.DOT())
		case FormatAdjacency:
			data, err = adjacency.RenderSVG(ctx, d.DOT())
		default:
			m, merr := mapFor()
			if merr != nil {
				return nil, merr
			}
			data, err = renderMap(ctx, m, format, svgOpts, opts.PNGScale)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

func renderMap(ctx context.Context, m *mapview.Map, format string, svgOpts []mapview.SVGOption, scale float64) ([]byte, error) {
	switch format {
	case FormatSVG:
		return mapview.RenderSVG(m, svgOpts...), nil
	case FormatJSON:
		return mapview.RenderJSON(m, svgOpts...)
	case FormatPNG:
		return mapview.RenderPNG(ctx, m, mapview.WithPNGSVGOptions(svgOpts...), mapview.WithScale(scale))
	case FormatPDF:
		return mapview.RenderPDF(ctx, m, svgOpts...)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// SVGOptions translates render options and a resolved focus into map sink
// options.
func SVGOptions(opts Options, cluster, school string) []mapview.SVGOption {
	var out []mapview.SVGOption
	if cluster != "" {
		out = append(out, mapview.WithFocus(cluster, school))
	}
	if opts.AllSchools {
		out = append(out, mapview.WithAllSchools())
	}
	if opts.Legend {
		out = append(out, mapview.WithLegend())
	}
	if opts.Stats {
		out = append(out, mapview.WithStats())
	}
	return out
}

// DOT returns the cluster adjacency graph in Graphviz DOT format.
func (d *Dataset) DOT() string {
	return adjacency.ToDOT(d.Clusters, d.Adjacency, d.Heatmap, adjacency.Options{Detailed: true})
}
