// Package scale derives the normalization range used to color ratios.
//
// Bounds are computed over defined values only: NaN and infinite values
// (the undefined ratios of schools without capacity) never move the range.
// The cluster scale usually carries a fixed floor so one under-filled
// cluster does not wash out the rest of the map:
//
//	b, ok := scale.Compute(values, scale.WithFloor(0.75))
//	if !ok {
//	    // nothing defined: render neutral
//	}
//	v := b.Normalize(ratio)
package scale

import (
	"fmt"
	"math"

	"github.com/schoolmaps/overcrowding/pkg/capacity"
)

// DefaultClusterFloor is the minimum of the cluster color scale unless
// configured otherwise.
const DefaultClusterFloor = 0.75

// Bounds is a closed normalization range.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Span returns Max - Min.
func (b Bounds) Span() float64 { return b.Max - b.Min }

// Normalize maps ratio into the range, so Min yields 0 and Max yields 1.
// Values outside the range are not clamped; colorizers saturate them.
// A range with a non-positive span normalizes everything to 0.
func (b Bounds) Normalize(ratio float64) float64 {
	span := b.Span()
	if span <= 0 || math.IsNaN(span) {
		return 0
	}
	return (ratio - b.Min) / span
}

// Contains reports whether v lies inside the range.
func (b Bounds) Contains(v float64) bool { return v >= b.Min && v <= b.Max }

func (b Bounds) String() string {
	return fmt.Sprintf("[%.3f, %.3f]", b.Min, b.Max)
}

type config struct {
	floor    float64
	hasFloor bool
}

// Option configures Compute.
type Option func(*config)

// WithFloor fixes the minimum of the range at f instead of the data minimum.
// A zero floor disables the option.
func WithFloor(f float64) Option {
	return func(c *config) {
		if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return
		}
		c.floor, c.hasFloor = f, true
	}
}

// Compute returns the range over the defined values. ok is false when no
// value is defined, in which case callers fall back to a neutral display.
// Max is always the true maximum, even when a floor exceeds it.
func Compute(values []float64, opts ...Option) (Bounds, bool) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	b := Bounds{Min: math.Inf(1), Max: math.Inf(-1)}
	n := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		b.Min = min(b.Min, v)
		b.Max = max(b.Max, v)
		n++
	}
	if n == 0 {
		return Bounds{}, false
	}
	if cfg.hasFloor {
		b.Min = cfg.floor
	}
	return b, true
}

// FromRatios computes bounds over the defined ratios of a result map.
func FromRatios(ratios map[string]capacity.Ratio, opts ...Option) (Bounds, bool) {
	values := make([]float64, 0, len(ratios))
	for _, r := range ratios {
		if v, ok := r.Value(); ok {
			values = append(values, v)
		}
	}
	return Compute(values, opts...)
}
