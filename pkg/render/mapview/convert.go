package mapview

import (
	"context"
	"slices"

	"github.com/schoolmaps/overcrowding/pkg/render"
)

// PNGOption configures PNG rendering.
type PNGOption func(*pngRenderer)

type pngRenderer struct {
	svgOpts []SVGOption
	scale   float64
}

// WithPNGSVGOptions passes options through to the underlying SVG renderer.
func WithPNGSVGOptions(opts ...SVGOption) PNGOption {
	return func(r *pngRenderer) { r.svgOpts = opts }
}

// WithScale sets the PNG scale factor (default 2.0 for 2x resolution).
func WithScale(s float64) PNGOption {
	return func(r *pngRenderer) { r.scale = s }
}

// RenderPNG renders the map as PNG via SVG conversion.
func RenderPNG(ctx context.Context, m *Map, opts ...PNGOption) ([]byte, error) {
	r := pngRenderer{scale: 2.0}
	for _, opt := range opts {
		opt(&r)
	}
	svg := RenderSVG(m, append(slices.Clip(r.svgOpts), WithoutScript())...)
	return render.ToPNG(ctx, svg, r.scale)
}

// RenderPDF renders the map as PDF via SVG conversion.
func RenderPDF(ctx context.Context, m *Map, opts ...SVGOption) ([]byte, error) {
	svg := RenderSVG(m, append(slices.Clip(opts), WithoutScript())...)
	return render.ToPDF(ctx, svg)
}
