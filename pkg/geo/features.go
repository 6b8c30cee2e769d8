package geo

import (
	"github.com/twpayne/go-geom"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

// Keys names the topology objects and properties that identify clusters
// and schools.
type Keys struct {
	ClusterObject string `toml:"cluster_object"`
	ClusterID     string `toml:"cluster_id"`
	ClusterName   string `toml:"cluster_name"`
	SchoolObject  string `toml:"school_object"`
	SchoolID      string `toml:"school_id"`
	SchoolName    string `toml:"school_name"`
	SchoolCluster string `toml:"school_cluster"`
}

// DefaultKeys matches the county cluster topology.
var DefaultKeys = Keys{
	ClusterObject: "clusters",
	ClusterID:     "id",
	ClusterName:   "name",
	SchoolObject:  "schools",
	SchoolID:      "s_id3",
	SchoolName:    "school",
	SchoolCluster: "cluster",
}

// WithDefaults fills empty fields from DefaultKeys.
func (k Keys) WithDefaults() Keys {
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&k.ClusterObject, DefaultKeys.ClusterObject)
	fill(&k.ClusterID, DefaultKeys.ClusterID)
	fill(&k.ClusterName, DefaultKeys.ClusterName)
	fill(&k.SchoolObject, DefaultKeys.SchoolObject)
	fill(&k.SchoolID, DefaultKeys.SchoolID)
	fill(&k.SchoolName, DefaultKeys.SchoolName)
	fill(&k.SchoolCluster, DefaultKeys.SchoolCluster)
	return k
}

// Cluster is a school cluster boundary.
type Cluster struct {
	ID       string
	Name     string
	Geometry *geom.MultiPolygon
}

// School is a school location and the cluster it belongs to.
type School struct {
	ID        string
	Name      string
	ClusterID string
	Location  *geom.Point
}

// Clusters extracts cluster boundaries from the topology. Clusters without
// an ID or with a non-polygonal geometry are rejected.
func (t *Topology) Clusters(keys Keys) ([]Cluster, error) {
	keys = keys.WithDefaults()
	obj, err := t.Object(keys.ClusterObject)
	if err != nil {
		return nil, err
	}

	var clusters []Cluster
	for i, g := range members(obj) {
		id := g.Property(keys.ClusterID)
		if id == "" {
			id = stringify(g.ID)
		}
		if id == "" {
			return nil, errors.New(errors.ErrCodeInvalidTopology,
				"cluster %d has no %q property", i, keys.ClusterID)
		}
		shape, err := t.Shape(g)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "cluster %s", id)
		}
		mp, ok := shape.(*geom.MultiPolygon)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidTopology,
				"cluster %s has geometry type %q, want polygon", id, g.Type)
		}
		name := g.Property(keys.ClusterName)
		if name == "" {
			name = id
		}
		clusters = append(clusters, Cluster{ID: id, Name: name, Geometry: mp})
	}
	return clusters, nil
}

// Schools extracts school points from the topology. The cluster property
// may be empty when membership has not been assigned yet.
func (t *Topology) Schools(keys Keys) ([]School, error) {
	keys = keys.WithDefaults()
	obj, err := t.Object(keys.SchoolObject)
	if err != nil {
		return nil, err
	}

	var schools []School
	for i, g := range members(obj) {
		id := g.Property(keys.SchoolID)
		if id == "" {
			return nil, errors.New(errors.ErrCodeInvalidTopology,
				"school %d has no %q property", i, keys.SchoolID)
		}
		shape, err := t.Shape(g)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "school %s", id)
		}
		pt, err := asPoint(shape)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "school %s", id)
		}
		name := g.Property(keys.SchoolName)
		if name == "" {
			name = id
		}
		schools = append(schools, School{
			ID:        id,
			Name:      name,
			ClusterID: g.Property(keys.SchoolCluster),
			Location:  pt,
		})
	}
	return schools, nil
}

// asPoint accepts a point or the first point of a multipoint.
func asPoint(g geom.T) (*geom.Point, error) {
	switch p := g.(type) {
	case *geom.Point:
		return p, nil
	case *geom.MultiPoint:
		if p.NumPoints() > 0 {
			return p.Point(0), nil
		}
	}
	return nil, errors.New(errors.ErrCodeInvalidTopology, "geometry is not a point")
}

// SetSchoolClusters writes mapping[schoolID] into the cluster property of
// every school geometry and returns the number of schools updated. Schools
// missing from mapping keep their current value.
func (t *Topology) SetSchoolClusters(keys Keys, mapping map[string]string) (int, error) {
	keys = keys.WithDefaults()
	obj, err := t.Object(keys.SchoolObject)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, g := range members(obj) {
		cluster, ok := mapping[g.Property(keys.SchoolID)]
		if !ok {
			continue
		}
		if g.Properties == nil {
			g.Properties = make(map[string]any)
		}
		g.Properties[keys.SchoolCluster] = cluster
		n++
	}
	return n, nil
}
