package geo

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/twpayne/go-geom"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

// Topology is a decoded TopoJSON document.
//
// Arcs keep their on-disk (possibly quantized, delta-encoded) form so the
// document can be written back unchanged apart from patched properties.
type Topology struct {
	Type      string               `json:"type"`
	BBox      []float64            `json:"bbox,omitempty"`
	Transform *Transform           `json:"transform,omitempty"`
	Objects   map[string]*Geometry `json:"objects"`
	Arcs      [][][]float64        `json:"arcs"`

	decoded [][]geom.Coord
}

// Transform dequantizes integer TopoJSON positions.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

// Geometry is a TopoJSON geometry object. Arcs and Coordinates stay raw
// until the geometry type is known.
type Geometry struct {
	Type        string          `json:"type"`
	ID          any             `json:"id,omitempty"`
	Properties  map[string]any  `json:"properties,omitempty"`
	Arcs        json.RawMessage `json:"arcs,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []*Geometry     `json:"geometries,omitempty"`
}

// Property returns a property as a string. Numbers are formatted without
// a trailing ".0" so numeric IDs match the capacity table.
func (g *Geometry) Property(key string) string {
	return stringify(g.Properties[key])
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

// Decode reads a TopoJSON topology from r.
func Decode(r io.Reader) (*Topology, error) {
	var t Topology
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode topology")
	}
	if t.Type != "Topology" {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "expected type Topology, got %q", t.Type)
	}
	t.decodeArcs()
	return &t, nil
}

// Parse decodes a topology held in memory.
func Parse(data []byte) (*Topology, error) {
	var t Topology
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode topology")
	}
	if t.Type != "Topology" {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "expected type Topology, got %q", t.Type)
	}
	t.decodeArcs()
	return &t, nil
}

// Encode writes the topology as JSON.
func (t *Topology) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode topology: %w", err)
	}
	return nil
}

// Object returns a named top-level object.
func (t *Topology) Object(name string) (*Geometry, error) {
	obj, ok := t.Objects[name]
	if !ok || obj == nil {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "topology has no object %q", name)
	}
	return obj, nil
}

// members flattens a GeometryCollection into its geometries.
func members(obj *Geometry) []*Geometry {
	if obj.Type == "GeometryCollection" {
		return obj.Geometries
	}
	return []*Geometry{obj}
}

func (t *Topology) decodeArcs() {
	t.decoded = make([][]geom.Coord, len(t.Arcs))
	for i, arc := range t.Arcs {
		coords := make([]geom.Coord, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if t.Transform == nil {
				coords = append(coords, geom.Coord{p[0], p[1]})
				continue
			}
			x += p[0]
			y += p[1]
			coords = append(coords, geom.Coord{
				x*t.Transform.Scale[0] + t.Transform.Translate[0],
				y*t.Transform.Scale[1] + t.Transform.Translate[1],
			})
		}
		t.decoded[i] = coords
	}
}

// point dequantizes a position without delta decoding.
func (t *Topology) point(p []float64) (geom.Coord, error) {
	if len(p) < 2 {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "position needs two values, got %d", len(p))
	}
	if t.Transform == nil {
		return geom.Coord{p[0], p[1]}, nil
	}
	return geom.Coord{
		p[0]*t.Transform.Scale[0] + t.Transform.Translate[0],
		p[1]*t.Transform.Scale[1] + t.Transform.Translate[1],
	}, nil
}

// arc returns the decoded coordinates of arc index i; a negative index ~j
// is arc j reversed.
func (t *Topology) arc(i int) ([]geom.Coord, error) {
	j := i
	if i < 0 {
		j = ^i
	}
	if j >= len(t.decoded) {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "arc index %d out of range (%d arcs)", i, len(t.decoded))
	}
	a := t.decoded[j]
	if i >= 0 {
		return a, nil
	}
	rev := make([]geom.Coord, len(a))
	for k, c := range a {
		rev[len(a)-1-k] = c
	}
	return rev, nil
}

// line stitches arcs end to end. Consecutive arcs share their joining
// point, which is kept once.
func (t *Topology) line(indices []int) ([]float64, error) {
	var flat []float64
	for n, i := range indices {
		a, err := t.arc(i)
		if err != nil {
			return nil, err
		}
		for k, c := range a {
			if k == 0 && n > 0 {
				continue
			}
			flat = append(flat, c[0], c[1])
		}
	}
	return flat, nil
}

func (t *Topology) ring(indices []int) (*geom.LinearRing, error) {
	flat, err := t.line(indices)
	if err != nil {
		return nil, err
	}
	if len(flat) < 8 {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "ring has %d points, need at least 4", len(flat)/2)
	}
	return geom.NewLinearRingFlat(geom.XY, flat), nil
}

func (t *Topology) polygon(rings [][]int) (*geom.Polygon, error) {
	poly := geom.NewPolygon(geom.XY)
	for _, r := range rings {
		ring, err := t.ring(r)
		if err != nil {
			return nil, err
		}
		if err := poly.Push(ring); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "build polygon")
		}
	}
	return poly, nil
}

// Shape converts a TopoJSON geometry into a go-geom geometry. Polygons are
// always returned as *geom.MultiPolygon. A geometry with a null type
// yields nil.
func (t *Topology) Shape(g *Geometry) (geom.T, error) {
	switch g.Type {
	case "", "null":
		return nil, nil

	case "Point":
		var p []float64
		if err := json.Unmarshal(g.Coordinates, &p); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode point")
		}
		c, err := t.point(p)
		if err != nil {
			return nil, err
		}
		return geom.NewPointFlat(geom.XY, c), nil

	case "MultiPoint":
		var ps [][]float64
		if err := json.Unmarshal(g.Coordinates, &ps); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode multipoint")
		}
		flat := make([]float64, 0, 2*len(ps))
		for _, p := range ps {
			c, err := t.point(p)
			if err != nil {
				return nil, err
			}
			flat = append(flat, c[0], c[1])
		}
		return geom.NewMultiPointFlat(geom.XY, flat), nil

	case "LineString":
		var arcs []int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode linestring arcs")
		}
		flat, err := t.line(arcs)
		if err != nil {
			return nil, err
		}
		return geom.NewLineStringFlat(geom.XY, flat), nil

	case "MultiLineString":
		var arcs [][]int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode multilinestring arcs")
		}
		mls := geom.NewMultiLineString(geom.XY)
		for _, a := range arcs {
			flat, err := t.line(a)
			if err != nil {
				return nil, err
			}
			if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "build multilinestring")
			}
		}
		return mls, nil

	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode polygon arcs")
		}
		poly, err := t.polygon(rings)
		if err != nil {
			return nil, err
		}
		mp := geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(poly); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "build multipolygon")
		}
		return mp, nil

	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode multipolygon arcs")
		}
		mp := geom.NewMultiPolygon(geom.XY)
		for _, rings := range polys {
			poly, err := t.polygon(rings)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(poly); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "build multipolygon")
			}
		}
		return mp, nil
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "unsupported geometry type %q", g.Type)
}

// arcIndices returns every arc referenced by a polygonal geometry, with
// negative indices resolved.
func arcIndices(g *Geometry) ([]int, error) {
	var flat []int
	add := func(rings [][]int) {
		for _, r := range rings {
			for _, i := range r {
				if i < 0 {
					i = ^i
				}
				flat = append(flat, i)
			}
		}
	}
	switch g.Type {
	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode polygon arcs")
		}
		add(rings)
	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode multipolygon arcs")
		}
		for _, p := range polys {
			add(p)
		}
	case "LineString":
		var a []int
		if err := json.Unmarshal(g.Arcs, &a); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode linestring arcs")
		}
		add([][]int{a})
	case "MultiLineString":
		var a [][]int
		if err := json.Unmarshal(g.Arcs, &a); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "decode multilinestring arcs")
		}
		add(a)
	}
	return flat, nil
}
