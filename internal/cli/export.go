package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/pkg/errors"
	pkgio "github.com/schoolmaps/overcrowding/pkg/io"
	"github.com/schoolmaps/overcrowding/pkg/pipeline"
)

// exportCommand creates the export command that writes per-entity ratios.
func (c *CLI) exportCommand() *cobra.Command {
	flags := inputFlags{}
	var output, format string

	cmd := &cobra.Command{
		Use:   "export [topology] [table]",
		Short: "Export county, cluster and school ratios as CSV or JSON",
		Long: `Export the aggregated figures behind the map.

The output format follows the extension of --output (.csv or .json). Without
--output the table is written to stdout in the --format given.`,
		Example: `  overcrowding export clusters.topojson capacity.csv -o ratios.csv
  overcrowding export --year 2023-24 --format json | jq .summary`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.mergeOptions(cmd, flags.opts, args)
			return c.runExport(cmd.Context(), opts, flags.noCache, output, format)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.csv or .json)")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "stdout format when --output is empty: csv or json")
	return cmd
}

func (c *CLI) runExport(ctx context.Context, opts pipeline.Options, noCache bool, output, format string) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	ds, err := runner.Dataset(ctx, opts)
	if err != nil {
		return err
	}
	ratios := ds.Ratios()

	if output == "" || output == "-" {
		switch strings.ToLower(format) {
		case "csv":
			return pkgio.WriteRatiosCSV(os.Stdout, ratios)
		case "json":
			return pkgio.WriteRatiosJSON(os.Stdout, ratios)
		default:
			return errors.New(errors.ErrCodeInvalidFormat, "unsupported export format %q (want csv or json)", format)
		}
	}

	if err := pkgio.ExportRatios(output, ratios); err != nil {
		return err
	}
	printSuccess("Exported %s clusters and %s schools", count(float64(len(ratios.Result.PerCluster))), count(float64(len(ratios.Result.PerSchool))))
	printFile(output)
	return nil
}
