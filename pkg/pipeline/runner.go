package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/schoolmaps/overcrowding/pkg/cache"
	"github.com/schoolmaps/overcrowding/pkg/observability"
	"github.com/schoolmaps/overcrowding/pkg/source"
)

// Runner encapsulates pipeline execution with caching.
// The CLI and the viewer both use it so caching logic lives in one place.
//
// The Runner is stateless except for the cache, fetcher and logger; it
// doesn't store pipeline results. Multiple goroutines can safely use the
// same Runner with different options.
type Runner struct {
	Cache   cache.Cache
	Keyer   cache.Keyer
	Fetcher *source.Fetcher
	Logger  *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:   c,
		Keyer:   keyer,
		Fetcher: &source.Fetcher{Keyer: keyer, Logger: logger},
		Logger:  logger,
	}
}

// Execute runs the complete load → build → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{}

	// Stage 1 and 2: Load and Build
	ds, err := r.dataset(ctx, opts, &result.Stats)
	if err != nil {
		return nil, err
	}
	result.Dataset = ds

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, ds, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", renderHit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Dataset loads and builds a dataset without rendering.
func (r *Runner) Dataset(ctx context.Context, opts Options) (*Dataset, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if err := opts.ValidateForBuild(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)
	return r.dataset(ctx, opts, &Stats{})
}

func (r *Runner) dataset(ctx context.Context, opts Options, stats *Stats) (*Dataset, error) {
	loadStart := time.Now()
	res, err := r.Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	stats.LoadTime = time.Since(loadStart)

	buildStart := time.Now()
	ds, err := r.Build(ctx, res, opts)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	stats.BuildTime = time.Since(buildStart)
	stats.Clusters = len(ds.Clusters)
	stats.Schools = len(ds.Schools)
	stats.Contributing = len(ds.Result.PerSchool)

	r.Logger.Info("built dataset",
		"clusters", stats.Clusters,
		"schools", stats.Schools,
		"contributing", stats.Contributing,
		"year", ds.Year,
		"duration", stats.LoadTime+stats.BuildTime)
	return ds, nil
}

// Load fetches the topology and the table concurrently. Either both are
// returned or the first error is.
func (r *Runner) Load(ctx context.Context, opts Options) (*source.Resources, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	f := r.fetcher(opts)
	hooks := observability.Pipeline()
	hooks.OnLoadStart(ctx, opts.Topology, opts.Table)
	start := time.Now()

	res, err := f.LoadAll(ctx, source.Request{Topology: opts.Topology, Table: opts.Table})
	if err != nil {
		hooks.OnLoadComplete(ctx, 0, 0, time.Since(start), err)
		return nil, err
	}
	hooks.OnLoadComplete(ctx, 0, 0, time.Since(start), nil)
	return res, nil
}

// Build derives a dataset from loaded inputs.
func (r *Runner) Build(ctx context.Context, res *source.Resources, opts Options) (*Dataset, error) {
	if err := opts.ValidateForBuild(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	hooks := observability.Pipeline()
	hooks.OnBuildStart(ctx, opts.Year, 0)
	start := time.Now()

	ds, err := build(ctx, r.Keyer, res, opts)
	if err != nil {
		hooks.OnBuildComplete(ctx, 0, time.Since(start), err)
		return nil, err
	}
	hooks.OnBuildComplete(ctx, len(ds.Result.PerSchool), time.Since(start), nil)
	return ds, nil
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, ds *Dataset, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()

	// Try to get all formats from cache
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(ds.Hash, opts.ArtifactKeyOpts(format))
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil || !hit {
			observability.Cache().OnCacheMiss(ctx, "artifact")
			break
		}
		observability.Cache().OnCacheHit(ctx, "artifact")
		artifacts[format] = data
	}
	if len(artifacts) == len(opts.Formats) {
		hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), nil)
		return artifacts, true, nil
	}

	rendered, err := Render(ctx, ds, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	for format, data := range rendered {
		key := r.Keyer.ArtifactKey(ds.Hash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, cache.ArtifactTTL); err != nil {
			r.Logger.Debug("cache write failed", "format", format, "err", err)
			continue
		}
		observability.Cache().OnCacheSet(ctx, "artifact", len(data))
	}
	return rendered, false, nil
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, ds *Dataset, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, ds, opts)
	return artifacts, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) fetcher(opts Options) *source.Fetcher {
	var f source.Fetcher
	if r.Fetcher != nil {
		f = *r.Fetcher
	}
	if f.Keyer == nil {
		f.Keyer = r.Keyer
	}
	f.Refresh = f.Refresh || opts.Refresh
	if f.Logger == nil {
		f.Logger = opts.Logger
	}
	return &f
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
