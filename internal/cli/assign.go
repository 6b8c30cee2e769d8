package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/geo"
	"github.com/schoolmaps/overcrowding/pkg/source"
)

// assignFlags holds the command-line flags for the assign command.
type assignFlags struct {
	output    string
	overwrite bool
	clusters  string
	schools   string
}

// assignCommand creates the assign command that recomputes school cluster
// membership by point-in-polygon tests.
func (c *CLI) assignCommand() *cobra.Command {
	flags := assignFlags{}

	cmd := &cobra.Command{
		Use:   "assign [topology]",
		Short: "Assign schools to the cluster containing them",
		Long: `Assign schools to the cluster containing them and write the result.

With a topology argument, school geometries gain a cluster property and the
patched topology is written. With --clusters and --schools, both GeoJSON
inputs are combined into one GeoJSON FeatureCollection instead.

By default only schools without a cluster are assigned; --overwrite
recomputes every school.`,
		Example: `  overcrowding assign clusters.topojson -o clusters.assigned.topojson
  overcrowding assign --clusters clusters.geojson --schools schools.geojson -o combined.geojson`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return c.runAssignTopology(cmd.Context(), args[0], &flags)
			}
			if flags.clusters == "" || flags.schools == "" {
				return errors.New(errors.ErrCodeInvalidInput, "need a topology argument or both --clusters and --schools")
			}
			return c.runAssignGeoJSON(cmd.Context(), &flags)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&flags.output, "output", "o", "", "output file (default stdout)")
	fl.BoolVar(&flags.overwrite, "overwrite", false, "reassign schools that already have a cluster")
	fl.StringVar(&flags.clusters, "clusters", "", "cluster boundaries as GeoJSON")
	fl.StringVar(&flags.schools, "schools", "", "school points as GeoJSON")

	return cmd
}

func (c *CLI) runAssignTopology(ctx context.Context, location string, flags *assignFlags) error {
	keys := c.config.Keys.WithDefaults()
	prog := newProgress(loggerFromContext(ctx))
	data, err := c.fetcher(ctx).Fetch(ctx, location)
	if err != nil {
		return err
	}
	topo, err := geo.Parse(data)
	if err != nil {
		return err
	}
	clusters, err := topo.Clusters(keys)
	if err != nil {
		return err
	}
	schools, err := topo.Schools(keys)
	if err != nil {
		return err
	}

	mapping := assignSchools(clusters, schools, flags.overwrite)
	n, err := topo.SetSchoolClusters(keys, mapping)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := topo.Encode(&buf); err != nil {
		return err
	}
	if err := c.writeOutput(flags.output, buf.Bytes()); err != nil {
		return err
	}
	reportAssigned(prog, n, len(schools), flags.output)
	return nil
}

func (c *CLI) runAssignGeoJSON(ctx context.Context, flags *assignFlags) error {
	keys := c.config.Keys.WithDefaults()
	prog := newProgress(loggerFromContext(ctx))
	f := c.fetcher(ctx)

	clusterData, err := f.Fetch(ctx, flags.clusters)
	if err != nil {
		return err
	}
	clusters, err := geo.ReadGeoJSONClusters(bytes.NewReader(clusterData), keys)
	if err != nil {
		return err
	}
	schoolData, err := f.Fetch(ctx, flags.schools)
	if err != nil {
		return err
	}
	schools, err := geo.ReadGeoJSONSchools(bytes.NewReader(schoolData), keys)
	if err != nil {
		return err
	}

	mapping := assignSchools(clusters, schools, flags.overwrite)
	for i := range schools {
		if cl, ok := mapping[schools[i].ID]; ok {
			schools[i].ClusterID = cl
		}
	}

	var buf bytes.Buffer
	if err := geo.WriteGeoJSON(&buf, clusters, schools, keys); err != nil {
		return err
	}
	if err := c.writeOutput(flags.output, buf.Bytes()); err != nil {
		return err
	}
	reportAssigned(prog, len(mapping), len(schools), flags.output)
	return nil
}

// assignSchools maps schools to their containing cluster. Without
// overwrite, schools that already name a cluster are left out.
func assignSchools(clusters []geo.Cluster, schools []geo.School, overwrite bool) map[string]string {
	candidates := schools
	if !overwrite {
		candidates = nil
		for _, s := range schools {
			if s.ClusterID == "" {
				candidates = append(candidates, s)
			}
		}
	}
	return geo.AssignClusters(clusters, candidates)
}

func (c *CLI) fetcher(ctx context.Context) *source.Fetcher {
	f := &source.Fetcher{Logger: loggerFromContext(ctx)}
	if hc, err := newHTTPCache(); err == nil {
		f.Cache = hc
	}
	return f
}

func (c *CLI) writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := io.Copy(os.Stdout, bytes.NewReader(data))
		return err
	}
	return writeArtifact(path, data)
}

// reportAssigned logs to stderr so stdout stays clean for piped output.
func reportAssigned(prog *progress, assigned, total int, output string) {
	prog.done(fmt.Sprintf("Assigned %d of %d schools", assigned, total))
	if output != "" && output != "-" {
		printSuccess("Assigned %d of %d schools", assigned, total)
		printFile(output)
	}
}
