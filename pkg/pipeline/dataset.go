package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/twpayne/go-geom"

	"github.com/schoolmaps/overcrowding/pkg/cache"
	"github.com/schoolmaps/overcrowding/pkg/capacity"
	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/geo"
	"github.com/schoolmaps/overcrowding/pkg/heatmap"
	pkgio "github.com/schoolmaps/overcrowding/pkg/io"
	"github.com/schoolmaps/overcrowding/pkg/render/mapview"
	"github.com/schoolmaps/overcrowding/pkg/selection"
	"github.com/schoolmaps/overcrowding/pkg/source"
)

// Dataset is everything derived from one load. It is immutable once built.
type Dataset struct {
	// Hash identifies the inputs and build options; artifact cache keys
	// derive from it.
	Hash string
	Year string

	Topology  *geo.Topology
	Clusters  []geo.Cluster
	Schools   []geo.School
	Borders   *geom.MultiLineString
	Adjacency []geo.Edge

	Table      *capacity.Table
	Records    []capacity.SchoolRecord
	Result     capacity.Result
	Heatmap    *heatmap.Heatmap
	Membership selection.Membership

	// Assigned counts schools whose cluster came from containment.
	Assigned int
	BuiltAt  time.Time
}

// Build decodes fetched inputs and derives a dataset. opts must have passed
// ValidateForBuild.
func Build(ctx context.Context, res *source.Resources, opts Options) (*Dataset, error) {
	return build(ctx, cache.NewDefaultKeyer(), res, opts)
}

func build(_ context.Context, keyer cache.Keyer, res *source.Resources, opts Options) (*Dataset, error) {
	if res == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no inputs loaded")
	}
	keys := opts.Keys.WithDefaults()
	logger := opts.Logger

	topo, err := geo.Parse(res.Topology)
	if err != nil {
		return nil, err
	}
	clusters, err := topo.Clusters(keys)
	if err != nil {
		return nil, err
	}
	schools, err := topo.Schools(keys)
	if err != nil {
		return nil, err
	}
	borders, err := topo.Mesh(keys.ClusterObject)
	if err != nil {
		return nil, err
	}
	edges, err := topo.Adjacency(keys.ClusterObject, keys.ClusterID)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Hash:      keyer.DatasetKey(opts.DatasetKeyOpts(cache.Hash(res.Topology), cache.Hash(res.Table))),
		Year:      opts.Year,
		Topology:  topo,
		Clusters:  clusters,
		Schools:   schools,
		Borders:   borders,
		Adjacency: edges,
		BuiltAt:   time.Now(),
	}

	if opts.AssignMissing {
		ds.Assigned = assignMissing(clusters, schools)
		if ds.Assigned > 0 {
			logger.Debug("assigned schools by containment", "schools", ds.Assigned)
		}
	}

	table, err := capacity.ReadTable(bytes.NewReader(res.Table))
	if err != nil {
		return nil, err
	}
	if !hasYear(table, opts.Year) {
		logger.Warn("capacity table has no rows for year", "year", opts.Year, "years", table.Years())
	}
	ds.Table = table

	members := make([]capacity.Member, len(schools))
	ds.Membership = make(selection.Membership, len(schools))
	for i, s := range schools {
		members[i] = capacity.Member{ID: s.ID, ClusterID: s.ClusterID, Name: s.Name}
		ds.Membership[s.ID] = s.ClusterID
	}
	ds.Records = table.Records(members, opts.Year)
	ds.Result = capacity.Aggregate(ds.Records)

	ds.Heatmap, err = heatmap.New(ds.Result, heatmap.Options{
		ClusterFloor: opts.Floor(),
		Palette:      opts.Palette,
		Bins:         opts.Bins,
		ClusterNames: ds.ClusterNames(),
		SchoolNames:  ds.SchoolNames(),
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// assignMissing fills empty school cluster IDs in place and returns how many
// were filled.
func assignMissing(clusters []geo.Cluster, schools []geo.School) int {
	var missing []geo.School
	for _, s := range schools {
		if s.ClusterID == "" {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return 0
	}
	mapping := geo.AssignClusters(clusters, missing)
	n := 0
	for i := range schools {
		if schools[i].ClusterID != "" {
			continue
		}
		if c, ok := mapping[schools[i].ID]; ok {
			schools[i].ClusterID = c
			n++
		}
	}
	return n
}

func hasYear(t *capacity.Table, year string) bool {
	for _, y := range t.Years() {
		if y == year {
			return true
		}
	}
	return false
}

// ClusterIDs returns cluster IDs in topology order.
func (d *Dataset) ClusterIDs() []string {
	ids := make([]string, len(d.Clusters))
	for i, c := range d.Clusters {
		ids[i] = c.ID
	}
	return ids
}

// ClusterNames maps cluster IDs to display names.
func (d *Dataset) ClusterNames() map[string]string {
	names := make(map[string]string, len(d.Clusters))
	for _, c := range d.Clusters {
		names[c.ID] = c.Name
	}
	return names
}

// SchoolNames maps school IDs to display names.
func (d *Dataset) SchoolNames() map[string]string {
	names := make(map[string]string, len(d.Schools))
	for _, s := range d.Schools {
		names[s.ID] = s.Name
	}
	return names
}

// Members returns the schools as capacity members.
func (d *Dataset) Members() []capacity.Member {
	members := make([]capacity.Member, len(d.Schools))
	for i, s := range d.Schools {
		members[i] = capacity.Member{ID: s.ID, ClusterID: s.ClusterID, Name: s.Name}
	}
	return members
}

// Selection returns a fresh selection controller over the dataset.
func (d *Dataset) Selection() *selection.Controller {
	return selection.New(d.ClusterIDs(), d.Membership)
}

// Focus validates a requested focus through the selection state machine.
// An empty cluster with a school selects the school's cluster.
func (d *Dataset) Focus(cluster, school string) (selection.State, error) {
	ctrl := d.Selection()
	if cluster == "" && school != "" {
		c, ok := d.Membership[school]
		if !ok {
			return selection.State{}, errors.New(errors.ErrCodeSchoolNotFound, "unknown school %q", school)
		}
		cluster = c
	}
	if cluster == "" {
		return ctrl.State(), nil
	}
	if _, err := ctrl.SelectCluster(cluster); err != nil {
		return selection.State{}, err
	}
	if school == "" {
		return ctrl.State(), nil
	}
	return ctrl.SelectSchool(school)
}

// Ratios returns the export view of the dataset.
func (d *Dataset) Ratios() pkgio.Ratios {
	return pkgio.Ratios{
		Year:         d.Year,
		Result:       d.Result,
		Members:      d.Members(),
		ClusterNames: d.ClusterNames(),
	}
}

// Map projects the dataset into a map model for the given render options.
func (d *Dataset) Map(opts Options) (*mapview.Map, error) {
	proj, err := geo.ParseProjection(opts.Projection)
	if err != nil {
		return nil, err
	}
	m, err := mapview.New(mapview.Config{
		Width:      opts.Width,
		Height:     opts.Height,
		Projection: proj,
	}, d.Heatmap, d.Clusters, d.Schools, d.Borders)
	if err != nil {
		return nil, fmt.Errorf("build map: %w", err)
	}
	return m, nil
}
