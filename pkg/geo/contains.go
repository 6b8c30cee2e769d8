package geo

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Contains reports whether p lies inside a polygon or multipolygon. Points
// inside a hole are outside; points on a boundary count as inside.
func Contains(g geom.T, p geom.Coord) bool {
	switch s := g.(type) {
	case *geom.Polygon:
		return polygonContains(s, p)
	case *geom.MultiPolygon:
		for i := 0; i < s.NumPolygons(); i++ {
			if polygonContains(s.Polygon(i), p) {
				return true
			}
		}
	}
	return false
}

func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	b := poly.Bounds()
	if p[0] < b.Min(0) || p[0] > b.Max(0) || p[1] < b.Min(1) || p[1] > b.Max(1) {
		return false
	}
	if !xy.IsPointInRing(geom.XY, p, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.IsPointInRing(geom.XY, p, poly.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// AssignClusters maps each school to the first cluster containing its
// location. Schools outside every cluster are absent from the result.
func AssignClusters(clusters []Cluster, schools []School) map[string]string {
	mapping := make(map[string]string, len(schools))
	for _, s := range schools {
		if s.Location == nil {
			continue
		}
		c := s.Location.Coords()
		if len(c) < 2 {
			continue
		}
		for _, cl := range clusters {
			if cl.Geometry != nil && Contains(cl.Geometry, c) {
				mapping[s.ID] = cl.ID
				break
			}
		}
	}
	return mapping
}
