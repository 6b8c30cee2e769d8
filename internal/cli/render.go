package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/pkg/pipeline"
)

// inputFlags are the load and build flags shared by every command that
// reads a dataset.
type inputFlags struct {
	opts    pipeline.Options
	noCache bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.opts.Year, "year", pipeline.DefaultYear, "capacity table year")
	fl.Float64Var(&f.opts.ClusterFloor, "floor", pipeline.DefaultClusterFloor, "minimum of the cluster color scale (negative disables)")
	fl.StringVar(&f.opts.Palette, "palette", pipeline.DefaultPalette, "color palette name or comma-separated hex colors")
	fl.IntVar(&f.opts.Bins, "bins", 0, "sample the palette into this many bins")
	fl.BoolVar(&f.opts.AssignMissing, "assign-missing", false, "place schools without a cluster into the cluster containing them")
	fl.BoolVar(&f.opts.Refresh, "refresh", false, "bypass the download cache")
	fl.BoolVar(&f.noCache, "no-cache", false, "disable caching")
}

// renderFlags holds the command-line flags for the render command.
type renderFlags struct {
	inputFlags
	output  string
	formats string
}

// renderCommand creates the render command for generating map artifacts.
func (c *CLI) renderCommand() *cobra.Command {
	flags := renderFlags{}

	cmd := &cobra.Command{
		Use:   "render [topology] [table]",
		Short: "Render the overcrowding map",
		Long: `Render the overcrowding map and related artifacts.

Formats:
  svg        interactive map (click a cluster to zoom)
  json       map model with paths, colors and ratios
  png, pdf   static map (requires rsvg-convert)
  dot        cluster adjacency graph in Graphviz DOT
  adjacency  cluster adjacency graph as SVG`,
		Example: `  overcrowding render clusters.topojson capacity.csv
  overcrowding render clusters.topojson capacity.csv -f svg,png --legend --stats
  overcrowding render clusters.topojson capacity.csv --cluster 12 --school 301 -o focus.svg`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.opts.Formats = pipeline.ParseFormats(flags.formats)
			opts := c.mergeOptions(cmd, flags.opts, args)
			return c.runRender(cmd.Context(), opts, &flags)
		},
	}

	flags.register(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&flags.output, "output", "o", "", "output file (single format) or base path (multiple)")
	fl.StringVarP(&flags.formats, "format", "f", pipeline.FormatSVG, "output format(s): svg, json, png, pdf, dot, adjacency (comma-separated)")
	fl.Float64Var(&flags.opts.Width, "width", pipeline.DefaultWidth, "frame width")
	fl.Float64Var(&flags.opts.Height, "height", pipeline.DefaultHeight, "frame height")
	fl.StringVar(&flags.opts.Projection, "projection", pipeline.DefaultProjection, "projection: albers, equirectangular, identity")
	fl.StringVar(&flags.opts.Cluster, "cluster", "", "focus this cluster")
	fl.StringVar(&flags.opts.School, "school", "", "focus this school (implies its cluster)")
	fl.BoolVar(&flags.opts.AllSchools, "all-schools", false, "draw every school marker, not only the focused cluster's")
	fl.BoolVar(&flags.opts.Legend, "legend", false, "draw the color legend")
	fl.BoolVar(&flags.opts.Stats, "stats", false, "draw the statistics panel")
	fl.Float64Var(&flags.opts.PNGScale, "png-scale", pipeline.DefaultPNGScale, "PNG resolution multiplier")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, opts pipeline.Options, flags *renderFlags) error {
	runner, err := c.newRunner(flags.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	spinner := startSpinner(ctx, "Rendering map...")
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.Fail("Render failed")
		return err
	}
	spinner.Stop()

	printSuccess("Rendered %s", StyleHighlight.Render(opts.Topology))
	printStats(result.Stats.Clusters, result.Stats.Schools, result.CacheInfo.RenderHit)
	if result.Dataset.Assigned > 0 {
		printDetail("%d schools assigned by containment", result.Dataset.Assigned)
	}

	single := len(opts.Formats) == 1
	formats := slices.Clone(opts.Formats)
	slices.Sort(formats)
	for _, format := range formats {
		path := outputPath(flags.output, opts.Topology, format, single)
		if err := writeArtifact(path, result.Artifacts[format]); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}

func writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
