package geo

import (
	"encoding/json"
	"io"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

func readFeatures(r io.Reader) ([]*geojson.Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "read geojson")
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode geojson")
	}
	return fc.Features, nil
}

func featureProperty(f *geojson.Feature, key string) string {
	if f.Properties == nil {
		return ""
	}
	return stringify(f.Properties[key])
}

// ReadGeoJSONClusters loads cluster boundaries from a GeoJSON
// FeatureCollection. Polygons are promoted to multipolygons.
func ReadGeoJSONClusters(r io.Reader, keys Keys) ([]Cluster, error) {
	keys = keys.WithDefaults()
	features, err := readFeatures(r)
	if err != nil {
		return nil, err
	}

	clusters := make([]Cluster, 0, len(features))
	for i, f := range features {
		id := featureProperty(f, keys.ClusterID)
		if id == "" {
			id = f.ID
		}
		if id == "" {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "cluster feature %d has no %q property", i, keys.ClusterID)
		}

		var mp *geom.MultiPolygon
		switch g := f.Geometry.(type) {
		case *geom.MultiPolygon:
			mp = g
		case *geom.Polygon:
			mp = geom.NewMultiPolygon(geom.XY)
			if err := mp.Push(g); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "cluster %s", id)
			}
		default:
			return nil, errors.New(errors.ErrCodeInvalidTopology, "cluster %s is not a polygon", id)
		}

		name := featureProperty(f, keys.ClusterName)
		if name == "" {
			name = id
		}
		clusters = append(clusters, Cluster{ID: id, Name: name, Geometry: mp})
	}
	return clusters, nil
}

// ReadGeoJSONSchools loads school points from a GeoJSON FeatureCollection.
func ReadGeoJSONSchools(r io.Reader, keys Keys) ([]School, error) {
	keys = keys.WithDefaults()
	features, err := readFeatures(r)
	if err != nil {
		return nil, err
	}

	schools := make([]School, 0, len(features))
	for i, f := range features {
		id := featureProperty(f, keys.SchoolID)
		if id == "" {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "school feature %d has no %q property", i, keys.SchoolID)
		}
		pt, err := asPoint(f.Geometry)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "school %s", id)
		}
		name := featureProperty(f, keys.SchoolName)
		if name == "" {
			name = id
		}
		schools = append(schools, School{
			ID:        id,
			Name:      name,
			ClusterID: featureProperty(f, keys.SchoolCluster),
			Location:  pt,
		})
	}
	return schools, nil
}

// WriteGeoJSON encodes clusters and schools as one FeatureCollection.
func WriteGeoJSON(w io.Writer, clusters []Cluster, schools []School, keys Keys) error {
	keys = keys.WithDefaults()
	fc := geojson.FeatureCollection{}
	for _, c := range clusters {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       c.ID,
			Geometry: c.Geometry,
			Properties: map[string]any{
				keys.ClusterID:   c.ID,
				keys.ClusterName: c.Name,
			},
		})
	}
	for _, s := range schools {
		f := &geojson.Feature{
			ID: s.ID,
			Properties: map[string]any{
				keys.SchoolID:      s.ID,
				keys.SchoolName:    s.Name,
				keys.SchoolCluster: s.ClusterID,
			},
		}
		if s.Location != nil {
			f.Geometry = s.Location
		}
		fc.Features = append(fc.Features, f)
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode geojson")
	}
	_, err = w.Write(data)
	return err
}
