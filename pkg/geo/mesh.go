package geo

import (
	"cmp"
	"slices"

	"github.com/twpayne/go-geom"
)

// Edge joins two clusters that share a border.
type Edge struct {
	A, B string
}

// Mesh returns the interior borders of a polygonal object: every arc that
// is referenced by two different geometries. Outer boundaries, referenced
// once, are left out.
func (t *Topology) Mesh(object string) (*geom.MultiLineString, error) {
	obj, err := t.Object(object)
	if err != nil {
		return nil, err
	}
	owners, err := arcOwners(members(obj))
	if err != nil {
		return nil, err
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := range t.decoded {
		o := owners[i]
		if len(o) < 2 || o[0] == o[len(o)-1] {
			continue
		}
		flat := make([]float64, 0, 2*len(t.decoded[i]))
		for _, c := range t.decoded[i] {
			flat = append(flat, c[0], c[1])
		}
		if len(flat) < 4 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			return nil, err
		}
	}
	return mls, nil
}

// Adjacency lists the pairs of geometries in object that share at least one
// arc, identified by idKey. Each pair appears once with A < B.
func (t *Topology) Adjacency(object, idKey string) ([]Edge, error) {
	obj, err := t.Object(object)
	if err != nil {
		return nil, err
	}
	geoms := members(obj)
	owners, err := arcOwners(geoms)
	if err != nil {
		return nil, err
	}

	seen := make(map[Edge]bool)
	var edges []Edge
	for _, o := range owners {
		for x := 0; x < len(o); x++ {
			for y := x + 1; y < len(o); y++ {
				a, b := geoms[o[x]].Property(idKey), geoms[o[y]].Property(idKey)
				if a == b || a == "" || b == "" {
					continue
				}
				if b < a {
					a, b = b, a
				}
				e := Edge{A: a, B: b}
				if !seen[e] {
					seen[e] = true
					edges = append(edges, e)
				}
			}
		}
	}
	slices.SortFunc(edges, func(x, y Edge) int {
		return cmp.Or(cmp.Compare(x.A, y.A), cmp.Compare(x.B, y.B))
	})
	return edges, nil
}

// arcOwners maps each arc index to the distinct geometries referencing it,
// in reference order.
func arcOwners(geoms []*Geometry) (map[int][]int, error) {
	owners := make(map[int][]int)
	for gi, g := range geoms {
		arcs, err := arcIndices(g)
		if err != nil {
			return nil, err
		}
		for _, a := range arcs {
			o := owners[a]
			if len(o) > 0 && o[len(o)-1] == gi {
				continue
			}
			owners[a] = append(o, gi)
		}
	}
	return owners, nil
}
