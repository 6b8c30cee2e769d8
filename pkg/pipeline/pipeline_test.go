package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schoolmaps/overcrowding/pkg/cache"
	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/selection"
	"github.com/schoolmaps/overcrowding/pkg/source"
)

// Two unit squares A and B sharing the edge x=1, one school in each.
const topology = `{
  "type": "Topology",
  "arcs": [
    [[1,0],[1,1]],
    [[1,1],[0,1],[0,0],[1,0]],
    [[1,0],[2,0],[2,1],[1,1]]
  ],
  "objects": {
    "clusters": {"type": "GeometryCollection", "geometries": [
      {"type": "Polygon", "arcs": [[1,0]], "properties": {"id": "A", "name": "Northwood"}},
      {"type": "Polygon", "arcs": [[2,-1]], "properties": {"id": "B", "name": "Southgate"}}
    ]},
    "schools": {"type": "GeometryCollection", "geometries": [
      {"type": "Point", "coordinates": [0.5,0.5], "properties": {"s_id3": "101", "school": "Alpha ES", "cluster": "A"}},
      {"type": "Point", "coordinates": [1.5,0.5], "properties": {"s_id3": "102", "school": "Beta ES"}}
    ]}
  }
}`

const table = `sch_id,year,Type,Value
101,2016,Capacity,100
101,2016,Enrollment,120
102,2016,Capacity,200
102,2016,Enrollment,150
`

func resources() *source.Resources {
	return &source.Resources{Topology: []byte(topology), Table: []byte(table)}
}

func buildDataset(t *testing.T, opts Options) *Dataset {
	t.Helper()
	if err := opts.ValidateForBuild(); err != nil {
		t.Fatalf("ValidateForBuild() error: %v", err)
	}
	ds, err := Build(context.Background(), resources(), opts)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return ds
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"pdf", false},
		{"json", false},
		{"dot", false},
		{"adjacency", false},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidFormat) {
			t.Errorf("ValidateFormat(%q) code = %v", tt.format, errors.GetCode(err))
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("Valid formats should pass: %v", err)
	}

	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("Invalid format should fail")
	}

	// Empty slice is valid
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestParseFormats(t *testing.T) {
	got := ParseFormats(" SVG, json,,dot ")
	want := []string{"svg", "json", "dot"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ParseFormats() = %v, want %v", got, want)
	}
	if ParseFormats("") != nil {
		t.Error("ParseFormats(\"\") should be nil")
	}
}

func TestExtension(t *testing.T) {
	if Extension(FormatSVG) != "svg" || Extension(FormatAdjacency) != "adjacency.svg" {
		t.Errorf("Extension() = %q, %q", Extension(FormatSVG), Extension(FormatAdjacency))
	}
}

func TestDefaults(t *testing.T) {
	opts := Options{Topology: "t.json", Table: "c.csv"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Year != DefaultYear || opts.ClusterFloor != DefaultClusterFloor || opts.Palette != DefaultPalette {
		t.Errorf("build defaults = %s", opts)
	}
	if opts.Width != DefaultWidth || opts.Height != DefaultHeight || opts.Projection != DefaultProjection {
		t.Errorf("render defaults = %vx%v %s", opts.Width, opts.Height, opts.Projection)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatSVG {
		t.Errorf("Formats = %v", opts.Formats)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}
}

func TestFloor(t *testing.T) {
	tests := []struct {
		name  string
		floor float64
		want  float64
	}{
		{"default", 0, DefaultClusterFloor},
		{"custom", 0.9, 0.9},
		{"disabled", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{ClusterFloor: tt.floor}
			opts.SetBuildDefaults()
			if got := opts.Floor(); got != tt.want {
				t.Errorf("Floor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing topology", Options{Table: "c.csv"}},
		{"missing table", Options{Topology: "t.json"}},
		{"bad year", Options{Topology: "t.json", Table: "c.csv", Year: "20x6"}},
		{"bad palette", Options{Topology: "t.json", Table: "c.csv", Palette: "plaid"}},
		{"negative bins", Options{Topology: "t.json", Table: "c.csv", Bins: -2}},
		{"bad format", Options{Topology: "t.json", Table: "c.csv", Formats: []string{"gif"}}},
		{"bad projection", Options{Topology: "t.json", Table: "c.csv", Projection: "mercator"}},
		{"negative size", Options{Topology: "t.json", Table: "c.csv", Width: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); err == nil {
				t.Error("ValidateAndSetDefaults() should fail")
			}
		})
	}
}

func TestBuild(t *testing.T) {
	ds := buildDataset(t, Options{})

	if len(ds.Clusters) != 2 || len(ds.Schools) != 2 {
		t.Fatalf("dataset has %d clusters, %d schools", len(ds.Clusters), len(ds.Schools))
	}
	if ds.Hash == "" {
		t.Error("dataset hash is empty")
	}
	if len(ds.Adjacency) != 1 {
		t.Errorf("Adjacency = %v", ds.Adjacency)
	}

	// 102 has no cluster property, so only A aggregates.
	a, ok := ds.Result.Cluster("A")
	if v, _ := a.Value(); !ok || v != 1.2 {
		t.Errorf("ratio A = %v, %v", v, ok)
	}
	if _, ok := ds.Result.Cluster("B"); ok {
		t.Error("cluster B should have no contributing school")
	}

	again := buildDataset(t, Options{})
	if again.Hash != ds.Hash {
		t.Error("hash should be stable for identical inputs")
	}
	other := buildDataset(t, Options{Year: "2015"})
	if other.Hash == ds.Hash {
		t.Error("hash should change with the year")
	}
}

func TestBuildAssignMissing(t *testing.T) {
	ds := buildDataset(t, Options{AssignMissing: true})
	if ds.Assigned != 1 {
		t.Errorf("Assigned = %d, want 1", ds.Assigned)
	}
	if ds.Membership["102"] != "B" {
		t.Errorf("school 102 cluster = %q, want B", ds.Membership["102"])
	}
	b, ok := ds.Result.Cluster("B")
	if v, _ := b.Value(); !ok || v != 0.75 {
		t.Errorf("ratio B = %v, %v", v, ok)
	}
}

func TestBuildErrors(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateForBuild(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := Build(ctx, nil, opts); err == nil {
		t.Error("Build(nil) should fail")
	}
	bad := &source.Resources{Topology: []byte("nope"), Table: []byte(table)}
	if _, err := Build(ctx, bad, opts); !errors.Is(err, errors.ErrCodeInvalidTopology) {
		t.Errorf("bad topology: err = %v", err)
	}
	noTable := &source.Resources{Topology: []byte(topology), Table: []byte("a,b\n1,2\n")}
	if _, err := Build(ctx, noTable, opts); !errors.Is(err, errors.ErrCodeInvalidTable) {
		t.Errorf("bad table: err = %v", err)
	}
}

func TestFocus(t *testing.T) {
	ds := buildDataset(t, Options{AssignMissing: true})

	tests := []struct {
		name     string
		cluster  string
		school   string
		want     selection.State
		wantCode errors.Code
	}{
		{"none", "", "", selection.State{}, ""},
		{"cluster", "A", "", selection.State{Level: selection.Cluster, Cluster: "A"}, ""},
		{"school", "A", "101", selection.State{Level: selection.School, Cluster: "A", School: "101"}, ""},
		{"school implies cluster", "", "102", selection.State{Level: selection.School, Cluster: "B", School: "102"}, ""},
		{"unknown cluster", "Z", "", selection.State{}, errors.ErrCodeClusterNotFound},
		{"unknown school", "", "999", selection.State{}, errors.ErrCodeSchoolNotFound},
		{"school outside cluster", "B", "101", selection.State{}, errors.ErrCodeSchoolNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ds.Focus(tt.cluster, tt.school)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Errorf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Focus() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	ds := buildDataset(t, Options{AssignMissing: true})
	opts := Options{Formats: []string{FormatSVG, FormatJSON, FormatDOT}, Cluster: "A", Legend: true}
	if err := opts.ValidateForRender(); err != nil {
		t.Fatal(err)
	}

	artifacts, err := Render(context.Background(), ds, opts)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	svg := string(artifacts[FormatSVG])
	if !strings.HasPrefix(svg, "<svg") || !strings.Contains(svg, `id="cluster-A" class="cluster active"`) {
		t.Errorf("svg missing focused cluster:\n%s", svg)
	}

	var doc struct {
		Clusters []struct {
			ID string `json:"id"`
		} `json:"clusters"`
	}
	if err := json.Unmarshal(artifacts[FormatJSON], &doc); err != nil {
		t.Fatalf("json artifact: %v", err)
	}
	if len(doc.Clusters) != 2 {
		t.Errorf("json has %d clusters", len(doc.Clusters))
	}

	dot := string(artifacts[FormatDOT])
	if !strings.HasPrefix(dot, "graph G {") || !strings.Contains(dot, "Northwood") {
		t.Errorf("dot output:\n%s", dot)
	}

	bad := opts
	bad.Cluster, bad.School = "B", "101"
	if _, err := Render(context.Background(), ds, bad); !errors.Is(err, errors.ErrCodeSchoolNotFound) {
		t.Errorf("invalid focus: err = %v", err)
	}
}

func TestSVGOptions(t *testing.T) {
	if got := SVGOptions(Options{}, "", ""); len(got) != 0 {
		t.Errorf("empty options produced %d sink options", len(got))
	}
	got := SVGOptions(Options{AllSchools: true, Legend: true, Stats: true}, "A", "101")
	if len(got) != 4 {
		t.Errorf("SVGOptions() returned %d options, want 4", len(got))
	}
}

func TestRunnerCachesArtifacts(t *testing.T) {
	dir := t.TempDir()
	topoPath := filepath.Join(dir, "clusters.topojson")
	tablePath := filepath.Join(dir, "capacity.csv")
	if err := os.WriteFile(topoPath, []byte(topology), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tablePath, []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}

	fc, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(fc, nil, nil)
	defer runner.Close()

	ctx := context.Background()
	opts := Options{Topology: topoPath, Table: tablePath, Formats: []string{FormatSVG, FormatDOT}}

	first, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if first.CacheInfo.RenderHit {
		t.Error("first run should miss the cache")
	}
	if first.Stats.Clusters != 2 || first.Stats.Contributing != 2 {
		t.Errorf("stats = %+v", first.Stats)
	}

	second, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.RenderHit {
		t.Error("second run should hit the cache")
	}
	if !bytes.Equal(first.Artifacts[FormatSVG], second.Artifacts[FormatSVG]) {
		t.Error("cached svg differs from rendered svg")
	}

	ds, err := runner.Dataset(ctx, Options{Topology: topoPath, Table: tablePath})
	if err != nil {
		t.Fatal(err)
	}
	if ds.Hash != first.Dataset.Hash {
		t.Error("Dataset() should build the same dataset as Execute()")
	}
}

func TestRunnerKeysBuildOptions(t *testing.T) {
	dir := t.TempDir()
	topoPath := filepath.Join(dir, "clusters.topojson")
	tablePath := filepath.Join(dir, "capacity.csv")
	if err := os.WriteFile(topoPath, []byte(topology), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tablePath, []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}

	fc, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(fc, nil, nil)
	defer runner.Close()

	ctx := context.Background()
	plain := Options{Topology: topoPath, Table: tablePath, Formats: []string{FormatSVG}}
	first, err := runner.Execute(ctx, plain)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	assigned := plain
	assigned.AssignMissing = true
	second, err := runner.Execute(ctx, assigned)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if second.Dataset.Hash == first.Dataset.Hash {
		t.Error("assigning missing clusters should change the dataset hash")
	}
	if second.CacheInfo.RenderHit {
		t.Error("run with assignment should miss the cache")
	}
	if bytes.Equal(first.Artifacts[FormatSVG], second.Artifacts[FormatSVG]) {
		t.Error("assigned map should differ from the unassigned one")
	}

	if err := assigned.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	fresh, err := Render(ctx, second.Dataset, assigned)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(fresh[FormatSVG], second.Artifacts[FormatSVG]) {
		t.Error("runner returned an artifact that differs from a fresh render")
	}

	renamed := plain
	renamed.Keys.SchoolName = "name"
	third, err := runner.Execute(ctx, renamed)
	if err != nil {
		t.Fatal(err)
	}
	if third.Dataset.Hash == first.Dataset.Hash {
		t.Error("different property keys should change the dataset hash")
	}
}

func TestRunnerLoadErrors(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	_, err := runner.Execute(context.Background(), Options{
		Topology: filepath.Join(t.TempDir(), "missing.json"),
		Table:    filepath.Join(t.TempDir(), "missing.csv"),
	})
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}
