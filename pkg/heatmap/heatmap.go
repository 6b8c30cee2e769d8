// Package heatmap combines aggregated ratios, scale bounds and a colorizer
// into the per-entity colors and statistics a map view needs.
package heatmap

import (
	"math"

	"github.com/schoolmaps/overcrowding/pkg/capacity"
	"github.com/schoolmaps/overcrowding/pkg/colorize"
	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/scale"
)

// Default alphas: clusters are translucent so borders and markers show
// through, school markers are opaque.
const (
	DefaultClusterAlpha = 0.5
	DefaultSchoolAlpha  = 1.0
)

// Options configures a Heatmap.
type Options struct {
	// ClusterFloor fixes the minimum of the cluster scale. Zero uses the
	// data minimum.
	ClusterFloor float64
	// Palette is a palette name or hex list understood by colorize.Parse.
	Palette string
	// Bins samples the palette into that many bins when positive.
	Bins         int
	ClusterAlpha float64
	SchoolAlpha  float64

	ClusterNames map[string]string
	SchoolNames  map[string]string
}

// Heatmap is an immutable color model over one aggregation result.
type Heatmap struct {
	result    capacity.Result
	colorizer colorize.Colorizer
	opts      Options

	clusterBounds, schoolBounds scale.Bounds
	clusterOK, schoolOK         bool
}

// New builds a heatmap. Cluster bounds honor the floor; school bounds always
// span the data.
func New(result capacity.Result, opts Options) (*Heatmap, error) {
	if opts.Palette == "" {
		opts.Palette = colorize.DefaultPalette
	}
	if opts.ClusterAlpha == 0 {
		opts.ClusterAlpha = DefaultClusterAlpha
	}
	if opts.SchoolAlpha == 0 {
		opts.SchoolAlpha = DefaultSchoolAlpha
	}
	if opts.ClusterAlpha < 0 || opts.ClusterAlpha > 1 || opts.SchoolAlpha < 0 || opts.SchoolAlpha > 1 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "alpha must be within [0, 1]")
	}
	if math.IsNaN(opts.ClusterFloor) || opts.ClusterFloor < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cluster floor must not be negative, got %v", opts.ClusterFloor)
	}

	c, err := colorize.Parse(opts.Palette, opts.Bins)
	if err != nil {
		return nil, err
	}

	h := &Heatmap{result: result, colorizer: c, opts: opts}
	h.clusterBounds, h.clusterOK = scale.FromRatios(result.PerCluster, scale.WithFloor(opts.ClusterFloor))
	h.schoolBounds, h.schoolOK = scale.FromRatios(result.PerSchool)
	return h, nil
}

// Result returns the underlying aggregation.
func (h *Heatmap) Result() capacity.Result { return h.result }

// Summary returns the county statistics.
func (h *Heatmap) Summary() capacity.Summary { return capacity.Summarize(h.result) }

// ClusterBounds returns the cluster scale; ok is false when no cluster has
// a defined ratio.
func (h *Heatmap) ClusterBounds() (scale.Bounds, bool) { return h.clusterBounds, h.clusterOK }

// SchoolBounds returns the school scale.
func (h *Heatmap) SchoolBounds() (scale.Bounds, bool) { return h.schoolBounds, h.schoolOK }

// Colorizer returns the configured colorizer.
func (h *Heatmap) Colorizer() colorize.Colorizer { return h.colorizer }

// ClusterColor returns the fill for a cluster, neutral when its ratio is
// undefined.
func (h *Heatmap) ClusterColor(id string) colorize.RGBA {
	r, ok := h.result.Cluster(id)
	return h.color(r, ok, h.clusterBounds, h.clusterOK).WithAlpha(h.opts.ClusterAlpha)
}

// SchoolColor returns the marker stroke for a school, neutral when the
// school does not contribute.
func (h *Heatmap) SchoolColor(id string) colorize.RGBA {
	r, ok := h.result.School(id)
	return h.color(r, ok, h.schoolBounds, h.schoolOK).WithAlpha(h.opts.SchoolAlpha)
}

func (h *Heatmap) color(r capacity.Ratio, ok bool, b scale.Bounds, bok bool) colorize.RGBA {
	if !ok || !bok {
		return colorize.Neutral
	}
	v, _ := r.Value()
	return h.colorizer.Color(b.Normalize(v))
}

// Stats is the statistics panel content for one cluster or school.
type Stats struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Enrollment float64 `json:"enrollment"`
	Capacity   float64 `json:"capacity"`
	Ratio      float64 `json:"ratio"`
	Percent    int     `json:"percent"`
	Defined    bool    `json:"defined"`
	Over       bool    `json:"over"`
	Color      string  `json:"color"`
}

func stats(id, name string, r capacity.Ratio, c colorize.RGBA) Stats {
	s := Stats{
		ID:         id,
		Name:       name,
		Enrollment: r.Enrollment,
		Capacity:   r.Capacity,
		Over:       r.Over(),
		Color:      c.String(),
	}
	if v, ok := r.Value(); ok {
		s.Ratio, s.Percent, s.Defined = v, capacity.Percent(v), true
	}
	if s.Name == "" {
		s.Name = id
	}
	return s
}

// ClusterStats returns the panel content for a cluster.
func (h *Heatmap) ClusterStats(id string) (Stats, error) {
	r, ok := h.result.PerCluster[id]
	name, named := h.opts.ClusterNames[id]
	if !ok && !named {
		return Stats{}, errors.New(errors.ErrCodeClusterNotFound, "unknown cluster %q", id)
	}
	return stats(id, name, r, h.ClusterColor(id)), nil
}

// SchoolStats returns the panel content for a school. Schools that do not
// contribute report zero figures and Defined false.
func (h *Heatmap) SchoolStats(id string) (Stats, error) {
	r, ok := h.result.PerSchool[id]
	name, named := h.opts.SchoolNames[id]
	if !ok && !named {
		return Stats{}, errors.New(errors.ErrCodeSchoolNotFound, "unknown school %q", id)
	}
	return stats(id, name, r, h.SchoolColor(id)), nil
}

// LegendEntry is one swatch of the legend.
type LegendEntry struct {
	Ratio   float64 `json:"ratio"`
	Percent int     `json:"percent"`
	Color   string  `json:"color"`
}

// Legend samples the cluster scale from its minimum to its maximum. With
// steps <= 0 a binned palette yields one entry per bin and a linear one
// five entries. It returns nil when the cluster scale is undefined.
func (h *Heatmap) Legend(steps int) []LegendEntry {
	if !h.clusterOK {
		return nil
	}
	if steps <= 0 {
		steps = 5
		if b, ok := h.colorizer.(*colorize.Binned); ok {
			steps = b.Len()
		}
	}

	b := h.clusterBounds
	entries := make([]LegendEntry, 0, steps)
	for i := range steps {
		t := 0.0
		if steps > 1 {
			t = float64(i) / float64(steps-1)
		}
		if bin, ok := h.colorizer.(*colorize.Binned); ok && steps == bin.Len() {
			// bin centers, so each swatch shows its own bin
			t = (float64(i) + 0.5) / float64(steps)
		}
		ratio := b.Min + t*b.Span()
		entries = append(entries, LegendEntry{
			Ratio:   ratio,
			Percent: capacity.Percent(ratio),
			Color:   h.colorizer.Color(t).WithAlpha(h.opts.ClusterAlpha).String(),
		})
	}
	return entries
}
