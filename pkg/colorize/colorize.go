// Package colorize maps normalized ratios to display colors.
//
// Two strategies implement [Colorizer]:
//
//   - [Linear] interpolates each RGB channel between the two stops that
//     bracket the value. A value sitting exactly on a stop returns that
//     stop's color unmodified.
//   - [Binned] splits [0, 1] into N equal bins and returns the color of
//     bin floor(v*N), with v == 1 landing in the last bin.
//
// Values outside [0, 1] saturate to the first or last color. NaN, the
// normalized form of an undefined ratio, maps to [Neutral].
package colorize

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

// RGBA is an 8-bit RGB color with a fractional alpha.
type RGBA struct {
	R uint8   `json:"r"`
	G uint8   `json:"g"`
	B uint8   `json:"b"`
	A float64 `json:"a"`
}

// Neutral is the mid-gray used for entities without a defined ratio.
var Neutral = RGBA{R: 128, G: 128, B: 128, A: 1}

// String formats the color as a CSS rgba() value.
func (c RGBA) String() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

// Hex formats the color as #rrggbb, dropping alpha.
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// WithAlpha returns a copy of c with its alpha replaced.
func (c RGBA) WithAlpha(a float64) RGBA {
	c.A = a
	return c
}

// Colorizer maps a normalized value to a color.
type Colorizer interface {
	Color(value float64) RGBA
}

// ColorStop anchors a color at a position in [0, 1].
type ColorStop struct {
	Position float64 `json:"position"`
	Color    RGBA    `json:"color"`
}

// Linear interpolates between sorted color stops.
type Linear struct {
	stops []ColorStop
}

// NewLinear builds a linear colorizer. Stops are copied and sorted by
// position; every position must lie in [0, 1].
func NewLinear(stops []ColorStop) (*Linear, error) {
	if len(stops) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidPalette, "linear palette needs at least one stop")
	}
	sorted := slices.Clone(stops)
	for _, s := range sorted {
		if math.IsNaN(s.Position) || s.Position < 0 || s.Position > 1 {
			return nil, errors.New(errors.ErrCodeInvalidPalette, "stop position %v outside [0, 1]", s.Position)
		}
	}
	slices.SortStableFunc(sorted, func(a, b ColorStop) int {
		switch {
		case a.Position < b.Position:
			return -1
		case a.Position > b.Position:
			return 1
		}
		return 0
	})
	return &Linear{stops: sorted}, nil
}

// Stops returns a copy of the sorted stops.
func (l *Linear) Stops() []ColorStop { return slices.Clone(l.stops) }

// Color implements Colorizer.
func (l *Linear) Color(value float64) RGBA {
	if math.IsNaN(value) {
		return Neutral
	}
	first, last := l.stops[0], l.stops[len(l.stops)-1]
	if value <= first.Position {
		return first.Color
	}
	if value >= last.Position {
		return last.Color
	}

	// index of the first stop strictly after value
	hi, _ := slices.BinarySearchFunc(l.stops, value, func(s ColorStop, v float64) int {
		if s.Position <= v {
			return -1
		}
		return 1
	})
	lo := l.stops[hi-1]
	if lo.Position == value {
		return lo.Color
	}
	up := l.stops[hi]
	t := (value - lo.Position) / (up.Position - lo.Position)
	return lerp(lo.Color, up.Color, t)
}

// lerp blends a and b in RGB space. Alpha is blended the same way.
func lerp(a, b RGBA, t float64) RGBA {
	r, g, bl := a.colorful().BlendRgb(b.colorful(), t).RGB255()
	return RGBA{R: r, G: g, B: bl, A: a.A + t*(b.A-a.A)}
}

func (c RGBA) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// Binned selects one of N colors by equal-width bucket.
type Binned struct {
	colors []RGBA
}

// NewBinned builds a binned colorizer over colors, lowest bin first.
func NewBinned(colors []RGBA) (*Binned, error) {
	if len(colors) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidPalette, "binned palette needs at least one color")
	}
	return &Binned{colors: slices.Clone(colors)}, nil
}

// Len returns the number of bins.
func (b *Binned) Len() int { return len(b.colors) }

// Bin returns the bin index for a normalized value, or -1 for NaN.
func (b *Binned) Bin(value float64) int {
	if math.IsNaN(value) {
		return -1
	}
	n := len(b.colors)
	value = min(max(value, 0), 1)
	return min(int(math.Floor(value*float64(n))), n-1)
}

// Color implements Colorizer.
func (b *Binned) Color(value float64) RGBA {
	i := b.Bin(value)
	if i < 0 {
		return Neutral
	}
	return b.colors[i]
}

// Sample builds a binned colorizer with n colors taken evenly from c,
// the first at 0 and the last at 1.
func Sample(c Colorizer, n int) (*Binned, error) {
	if n <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidPalette, "bin count must be positive, got %d", n)
	}
	colors := make([]RGBA, n)
	for i := range colors {
		pos := 0.0
		if n > 1 {
			pos = float64(i) / float64(n-1)
		}
		colors[i] = c.Color(pos)
	}
	return NewBinned(colors)
}
