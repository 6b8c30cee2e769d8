// Package pipeline provides the load → build → render pipeline behind every
// entry point of the overcrowding tool.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: fetch the topology and the capacity table (local paths or URLs)
//     concurrently, all or nothing
//  2. Build: decode both inputs, join schools with their figures for one
//     year, aggregate ratios and derive scales and colors into a [Dataset]
//  3. Render: produce the requested artifacts (SVG, JSON, PNG, PDF, DOT and
//     the adjacency diagram) from a Dataset
//
// A Dataset is recomputed in full on every load and is read-only after
// that; the viewer swaps it atomically on reload.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Topology: "clusters.topojson",
//	    Table:    "capacity.csv",
//	    Formats:  []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
//
// Run individual stages:
//
//	res, err := runner.Load(ctx, opts)
//	ds, err := runner.Build(ctx, res, opts)
//	artifacts, err := runner.Render(ctx, ds, opts)
package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/schoolmaps/overcrowding/pkg/cache"
	"github.com/schoolmaps/overcrowding/pkg/colorize"
	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/geo"
	"github.com/schoolmaps/overcrowding/pkg/scale"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Viewer
// =============================================================================

const (
	// DefaultYear is the table year joined with the topology.
	DefaultYear = "2016"

	// DefaultClusterFloor fixes the minimum of the cluster color scale so a
	// single under-enrolled cluster does not wash out the rest.
	DefaultClusterFloor = scale.DefaultClusterFloor

	// DefaultWidth is the default frame width in pixels.
	DefaultWidth = 960.0

	// DefaultHeight is the default frame height in pixels.
	DefaultHeight = 600.0

	// DefaultProjection is the default map projection.
	DefaultProjection = "albers"

	// DefaultPNGScale is the default PNG resolution multiplier.
	DefaultPNGScale = 2.0
)

// DefaultPalette is the default color palette.
const DefaultPalette = colorize.DefaultPalette

// Format constants for output formats.
const (
	FormatSVG       = "svg"
	FormatPNG       = "png"
	FormatPDF       = "pdf"
	FormatJSON      = "json"
	FormatDOT       = "dot"
	FormatAdjacency = "adjacency"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:       true,
	FormatPNG:       true,
	FormatPDF:       true,
	FormatJSON:      true,
	FormatDOT:       true,
	FormatAdjacency: true,
}

// Extension returns the file extension written for a format.
func Extension(format string) string {
	if format == FormatAdjacency {
		return "adjacency.svg"
	}
	return format
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the pipeline. Field tags let the
// CLI read it from a TOML config file and the viewer from JSON.
type Options struct {
	// Load options
	Topology string   `json:"topology" toml:"topology"`
	Table    string   `json:"table" toml:"table"`
	Keys     geo.Keys `json:"-" toml:"keys"`
	Refresh  bool     `json:"refresh,omitempty" toml:"refresh"`

	// Build options
	Year string `json:"year,omitempty" toml:"year"`
	// ClusterFloor is the minimum of the cluster scale. Zero selects
	// DefaultClusterFloor; a negative value disables the floor.
	ClusterFloor float64 `json:"cluster_floor,omitempty" toml:"cluster_floor"`
	Palette      string  `json:"palette,omitempty" toml:"palette"`
	Bins         int     `json:"bins,omitempty" toml:"bins"`
	// AssignMissing places schools without a cluster property into the
	// cluster that contains them.
	AssignMissing bool `json:"assign_missing,omitempty" toml:"assign_missing"`

	// Render options
	Formats    []string `json:"formats,omitempty" toml:"formats"`
	Width      float64  `json:"width,omitempty" toml:"width"`
	Height     float64  `json:"height,omitempty" toml:"height"`
	Projection string   `json:"projection,omitempty" toml:"projection"`
	Cluster    string   `json:"cluster,omitempty" toml:"cluster"`
	School     string   `json:"school,omitempty" toml:"school"`
	AllSchools bool     `json:"all_schools,omitempty" toml:"all_schools"`
	Legend     bool     `json:"legend,omitempty" toml:"legend"`
	Stats      bool     `json:"stats,omitempty" toml:"stats"`
	PNGScale   float64  `json:"png_scale,omitempty" toml:"png_scale"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-" toml:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Dataset is the built dataset.
	Dataset *Dataset

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Clusters     int
	Schools      int
	Contributing int
	LoadTime     time.Duration
	BuildTime    time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: svg, png, pdf, json, dot, adjacency)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ParseFormats splits a comma-separated format list.
func ParseFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the
// full pipeline. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLoad(); err != nil {
		return err
	}
	if err := o.ValidateForBuild(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForLoad checks the input locations.
func (o *Options) ValidateForLoad() error {
	if o.Topology == "" {
		return errors.New(errors.ErrCodeInvalidInput, "topology is required")
	}
	if o.Table == "" {
		return errors.New(errors.ErrCodeInvalidInput, "table is required")
	}
	if err := errors.ValidateLocation(o.Topology); err != nil {
		return err
	}
	if err := errors.ValidateLocation(o.Table); err != nil {
		return err
	}
	o.setLogger()
	return nil
}

// ValidateForBuild validates and sets defaults for the build stage.
func (o *Options) ValidateForBuild() error {
	o.SetBuildDefaults()
	if err := errors.ValidateYear(o.Year); err != nil {
		return err
	}
	if o.Bins < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "bins must not be negative, got %d", o.Bins)
	}
	if _, err := colorize.Parse(o.Palette, o.Bins); err != nil {
		return err
	}
	return nil
}

// SetBuildDefaults sets default values for the build stage.
func (o *Options) SetBuildDefaults() {
	if o.Year == "" {
		o.Year = DefaultYear
	}
	if o.ClusterFloor == 0 {
		o.ClusterFloor = DefaultClusterFloor
	}
	if o.Palette == "" {
		o.Palette = DefaultPalette
	}
	o.Keys = o.Keys.WithDefaults()
	o.setLogger()
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Projection == "" {
		o.Projection = DefaultProjection
	}
	if o.PNGScale == 0 {
		o.PNGScale = DefaultPNGScale
	}
	o.setLogger()
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Width < 0 || o.Height < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "size must be positive, got %vx%v", o.Width, o.Height)
	}
	if _, err := geo.ParseProjection(o.Projection); err != nil {
		return err
	}
	if o.Cluster != "" {
		if err := errors.ValidateID(o.Cluster); err != nil {
			return err
		}
	}
	if o.School != "" {
		if err := errors.ValidateID(o.School); err != nil {
			return err
		}
	}
	return nil
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Floor returns the cluster floor passed to the heatmap: zero when the
// floor is disabled.
func (o *Options) Floor() float64 {
	if o.ClusterFloor < 0 {
		return 0
	}
	return o.ClusterFloor
}

// DatasetKeyOpts returns cache key options for a dataset built from inputs
// with the given content hashes.
func (o *Options) DatasetKeyOpts(topologyHash, tableHash string) cache.DatasetKeyOpts {
	k := o.Keys.WithDefaults()
	return cache.DatasetKeyOpts{
		TopologyHash: topologyHash,
		TableHash:    tableHash,
		Year:         o.Year,
		ClusterFloor: o.Floor(),
		Palette:      o.Palette,
		Bins:         o.Bins,
		Keys: map[string]string{
			"cluster_object": k.ClusterObject,
			"cluster_id":     k.ClusterID,
			"cluster_name":   k.ClusterName,
			"school_object":  k.SchoolObject,
			"school_id":      k.SchoolID,
			"school_name":    k.SchoolName,
			"school_cluster": k.SchoolCluster,
		},
		AssignMissing: o.AssignMissing,
	}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:     format,
		Width:      o.Width,
		Height:     o.Height,
		Projection: o.Projection,
		Cluster:    o.Cluster,
		School:     o.School,
		AllSchools: o.AllSchools,
		Legend:     o.Legend,
		Stats:      o.Stats,
		Scale:      o.PNGScale,
	}
}

// String implements fmt.Stringer for debug logging.
func (o Options) String() string {
	return fmt.Sprintf("pipeline.Options{topology=%s table=%s year=%s formats=%v}", o.Topology, o.Table, o.Year, o.Formats)
}
