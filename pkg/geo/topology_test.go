package geo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/twpayne/go-geom"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

// Two unit squares A and B sharing the edge x=1.
const squares = `{
  "type": "Topology",
  "arcs": [
    [[1,0],[1,1]],
    [[1,1],[0,1],[0,0],[1,0]],
    [[1,0],[2,0],[2,1],[1,1]]
  ],
  "objects": {
    "clusters": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "arcs": [[1,0]], "properties": {"id": "A", "name": "Alpha"}},
        {"type": "Polygon", "arcs": [[2,-1]], "properties": {"id": "B"}}
      ]
    },
    "schools": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Point", "coordinates": [0.5,0.5], "properties": {"s_id3": 101, "school": "North ES", "cluster": "A"}},
        {"type": "Point", "coordinates": [1.5,0.5], "properties": {"s_id3": "102", "school": "South ES"}},
        {"type": "Point", "coordinates": [5,5], "properties": {"s_id3": "103"}}
      ]
    }
  }
}`

func mustParse(t *testing.T, s string) *Topology {
	t.Helper()
	topo, err := Decode(strings.NewReader(s))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return topo
}

func TestClusters(t *testing.T) {
	topo := mustParse(t, squares)
	clusters, err := topo.Clusters(DefaultKeys)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
	if clusters[0].ID != "A" || clusters[0].Name != "Alpha" {
		t.Errorf("cluster 0 = %s/%s", clusters[0].ID, clusters[0].Name)
	}
	if clusters[1].Name != "B" {
		t.Errorf("cluster without name should fall back to ID, got %q", clusters[1].Name)
	}

	ring := clusters[0].Geometry.Polygon(0).LinearRing(0)
	want := []float64{1, 1, 0, 1, 0, 0, 1, 0, 1, 1}
	if got := ring.FlatCoords(); !equalFloats(got, want) {
		t.Errorf("ring A = %v, want %v", got, want)
	}

	ringB := clusters[1].Geometry.Polygon(0).LinearRing(0)
	wantB := []float64{1, 0, 2, 0, 2, 1, 1, 1, 1, 0}
	if got := ringB.FlatCoords(); !equalFloats(got, wantB) {
		t.Errorf("ring B (reversed arc) = %v, want %v", got, wantB)
	}
}

func TestSchools(t *testing.T) {
	topo := mustParse(t, squares)
	schools, err := topo.Schools(DefaultKeys)
	if err != nil {
		t.Fatal(err)
	}
	if len(schools) != 3 {
		t.Fatalf("got %d schools", len(schools))
	}
	if schools[0].ID != "101" {
		t.Errorf("numeric ID should format as integer, got %q", schools[0].ID)
	}
	if schools[0].ClusterID != "A" || schools[1].ClusterID != "" {
		t.Errorf("cluster IDs = %q, %q", schools[0].ClusterID, schools[1].ClusterID)
	}
	if schools[2].Name != "103" {
		t.Errorf("unnamed school should fall back to ID, got %q", schools[2].Name)
	}
	if c := schools[1].Location.Coords(); c[0] != 1.5 || c[1] != 0.5 {
		t.Errorf("school 102 at %v", c)
	}
}

func TestQuantizedArcs(t *testing.T) {
	const quantized = `{
	  "type": "Topology",
	  "transform": {"scale": [0.5, 0.5], "translate": [10, 20]},
	  "arcs": [[[0,0],[2,0],[0,2],[-2,0],[0,-2]]],
	  "objects": {
	    "clusters": {"type": "GeometryCollection", "geometries": [
	      {"type": "Polygon", "id": 7, "arcs": [[0]], "properties": {"id": "Q"}}
	    ]},
	    "schools": {"type": "GeometryCollection", "geometries": [
	      {"type": "Point", "coordinates": [1, 1], "properties": {"s_id3": "s"}}
	    ]}
	  }
	}`
	topo := mustParse(t, quantized)

	clusters, err := topo.Clusters(DefaultKeys)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{10, 20, 11, 20, 11, 21, 10, 21, 10, 20}
	if got := clusters[0].Geometry.FlatCoords(); !equalFloats(got, want) {
		t.Errorf("dequantized ring = %v, want %v", got, want)
	}

	schools, err := topo.Schools(DefaultKeys)
	if err != nil {
		t.Fatal(err)
	}
	if c := schools[0].Location.Coords(); c[0] != 10.5 || c[1] != 20.5 {
		t.Errorf("point should not be delta decoded, got %v", c)
	}

	if _, err := topo.SetSchoolClusters(DefaultKeys, map[string]string{"s": "Q"}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := topo.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`"transform":{"scale":[0.5,0.5],"translate":[10,20]}`,
		`"arcs":[[[0,0],[2,0],[0,2],[-2,0],[0,-2]]]`,
		`"id":7`,
		`"cluster":"Q"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("encoded topology missing %s:\n%s", want, out)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "nope"},
		{"wrong type", `{"type": "FeatureCollection"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			if !errors.Is(err, errors.ErrCodeInvalidTopology) {
				t.Errorf("err = %v, want INVALID_TOPOLOGY", err)
			}
		})
	}

	topo := mustParse(t, `{"type":"Topology","arcs":[],"objects":{"clusters":{"type":"GeometryCollection","geometries":[{"type":"Polygon","arcs":[[3]],"properties":{"id":"x"}}]}}}`)
	if _, err := topo.Clusters(DefaultKeys); !errors.Is(err, errors.ErrCodeInvalidTopology) {
		t.Errorf("out of range arc: err = %v", err)
	}
	if _, err := topo.Schools(DefaultKeys); !errors.Is(err, errors.ErrCodeInvalidTopology) {
		t.Errorf("missing object: err = %v", err)
	}
}

func TestMeshAndAdjacency(t *testing.T) {
	topo := mustParse(t, squares)

	mesh, err := topo.Mesh("clusters")
	if err != nil {
		t.Fatal(err)
	}
	if mesh.NumLineStrings() != 1 {
		t.Fatalf("mesh has %d lines, want only the shared edge", mesh.NumLineStrings())
	}
	if got := mesh.LineString(0).FlatCoords(); !equalFloats(got, []float64{1, 0, 1, 1}) {
		t.Errorf("shared edge = %v", got)
	}

	edges, err := topo.Adjacency("clusters", "id")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0] != (Edge{A: "A", B: "B"}) {
		t.Errorf("Adjacency() = %v", edges)
	}
}

func TestAssignAndPatch(t *testing.T) {
	topo := mustParse(t, squares)
	clusters, _ := topo.Clusters(DefaultKeys)
	schools, _ := topo.Schools(DefaultKeys)

	mapping := AssignClusters(clusters, schools)
	if mapping["101"] != "A" || mapping["102"] != "B" {
		t.Errorf("mapping = %v", mapping)
	}
	if _, ok := mapping["103"]; ok {
		t.Error("school outside every cluster should stay unassigned")
	}

	n, err := topo.SetSchoolClusters(DefaultKeys, mapping)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("patched %d schools, want 2", n)
	}

	var buf bytes.Buffer
	if err := topo.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	again := mustParse(t, buf.String())
	patched, err := again.Schools(DefaultKeys)
	if err != nil {
		t.Fatal(err)
	}
	if patched[1].ClusterID != "B" {
		t.Errorf("patched school 102 cluster = %q, want B", patched[1].ClusterID)
	}
	c2, _ := again.Clusters(DefaultKeys)
	if !equalFloats(c2[1].Geometry.FlatCoords(), clusters[1].Geometry.FlatCoords()) {
		t.Error("round trip changed cluster geometry")
	}
}

func TestContainsHole(t *testing.T) {
	outer := geom.NewLinearRingFlat(geom.XY, []float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0})
	hole := geom.NewLinearRingFlat(geom.XY, []float64{4, 4, 6, 4, 6, 6, 4, 6, 4, 4})
	poly := geom.NewPolygon(geom.XY)
	if err := poly.Push(outer); err != nil {
		t.Fatal(err)
	}
	if err := poly.Push(hole); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		p    geom.Coord
		want bool
	}{
		{geom.Coord{1, 1}, true},
		{geom.Coord{5, 5}, false},
		{geom.Coord{11, 5}, false},
		{geom.Coord{-1, -1}, false},
	}
	for _, tt := range tests {
		if got := Contains(poly, tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestKeysWithDefaults(t *testing.T) {
	k := Keys{SchoolID: "sch_id"}.WithDefaults()
	if k.SchoolID != "sch_id" || k.ClusterID != "id" || k.SchoolCluster != "cluster" {
		t.Errorf("WithDefaults() = %+v", k)
	}
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
