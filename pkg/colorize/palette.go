package colorize

import (
	"slices"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

// Palette names accepted by Parse.
const (
	PaletteHeat    = "heat"
	PaletteRdYlGn9 = "rdylgn9"
	PaletteRdYlBu  = "rdylbu"
)

// DefaultPalette is used when no palette is configured.
const DefaultPalette = PaletteHeat

type palette struct {
	hex    []string
	binned bool
}

// Low ratios first. The ColorBrewer ramps are reversed so red means
// over capacity.
var palettes = map[string]palette{
	PaletteHeat: {hex: []string{"#00ff00", "#ff0000"}},
	PaletteRdYlGn9: {
		hex: []string{
			"#1a9850", "#66bd63", "#a6d96a", "#d9ef8b", "#ffffbf",
			"#fee08b", "#fdae61", "#f46d43", "#d73027",
		},
		binned: true,
	},
	PaletteRdYlBu: {hex: []string{"#2c7bb6", "#abd9e9", "#ffffbf", "#fdae61", "#d7191c"}},
}

// Palettes returns the built-in palette names, sorted.
func Palettes() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Parse builds a colorizer from a palette name or a comma-separated list of
// hex colors ("#2c7bb6,#ffffbf,#d7191c").
//
// With bins == 0 the palette's natural form is used: rdylgn9 is binned and
// the others interpolate. A positive bins samples the palette into that many
// bins.
func Parse(name string, bins int) (Colorizer, error) {
	if bins < 0 {
		return nil, errors.New(errors.ErrCodeInvalidPalette, "bin count must not be negative, got %d", bins)
	}

	p, ok := palettes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		if !strings.Contains(name, "#") {
			return nil, errors.New(errors.ErrCodeInvalidPalette,
				"unknown palette %q (available: %s)", name, strings.Join(Palettes(), ", "))
		}
		p = palette{hex: strings.Split(name, ",")}
	}

	colors, err := parseHex(p.hex)
	if err != nil {
		return nil, err
	}

	if p.binned && (bins == 0 || bins == len(colors)) {
		return NewBinned(colors)
	}

	lin, err := NewLinear(evenStops(colors))
	if err != nil {
		return nil, err
	}
	if bins == 0 {
		return lin, nil
	}
	return Sample(lin, bins)
}

func parseHex(hex []string) ([]RGBA, error) {
	colors := make([]RGBA, 0, len(hex))
	for _, h := range hex {
		h = strings.TrimSpace(h)
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPalette, err, "parse color %q", h)
		}
		r, g, b := c.RGB255()
		colors = append(colors, RGBA{R: r, G: g, B: b, A: 1})
	}
	if len(colors) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidPalette, "palette has no colors")
	}
	return colors, nil
}

func evenStops(colors []RGBA) []ColorStop {
	stops := make([]ColorStop, len(colors))
	for i, c := range colors {
		pos := 0.0
		if len(colors) > 1 {
			pos = float64(i) / float64(len(colors)-1)
		}
		stops[i] = ColorStop{Position: pos, Color: c}
	}
	return stops
}
