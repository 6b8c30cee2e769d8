package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/geo"
	"github.com/schoolmaps/overcrowding/pkg/pipeline"
	"github.com/schoolmaps/overcrowding/pkg/selection"
	"github.com/schoolmaps/overcrowding/pkg/source"
)

// Two unit squares A and B sharing the edge x=1. School 102 carries no
// cluster property.
const testTopology = `{
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

const testTable = `sch_id,year,Type,Value
101,2016,Capacity,100
101,2016,Enrollment,120
102,2016,Capacity,200
102,2016,Enrollment,150
`

func testDataset(t *testing.T, assign bool) *pipeline.Dataset {
	t.Helper()
	opts := pipeline.Options{AssignMissing: assign}
	if err := opts.ValidateForBuild(); err != nil {
		t.Fatalf("ValidateForBuild() error: %v", err)
	}
	res := &source.Resources{Topology: []byte(testTopology), Table: []byte(testTable)}
	ds, err := pipeline.Build(context.Background(), res, opts)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return ds
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, input, want string
	}{
		{"", "data/clusters.topojson", "data/clusters"},
		{"", "https://example.org/maps/clusters.json", "clusters"},
		{"out.svg", "in.topojson", "out"},
		{"out.adjacency.svg", "in.topojson", "out"},
		{"out", "in.topojson", "out"},
		{"out.txt", "in.topojson", "out.txt"},
	}
	for _, tt := range tests {
		if got := basePath(tt.output, tt.input); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name   string
		output string
		format string
		single bool
		want   string
	}{
		{"single verbatim", "map.out", "svg", true, "map.out"},
		{"single derived", "", "png", true, "clusters.png"},
		{"multiple from base", "map.svg", "pdf", false, "map.pdf"},
		{"adjacency extension", "map", pipeline.FormatAdjacency, false, "map." + pipeline.Extension(pipeline.FormatAdjacency)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputPath(tt.output, "clusters.topojson", tt.format, tt.single); got != tt.want {
				t.Errorf("outputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `topology = "clusters.topojson"
table = "capacity.csv"
year = "2017"
cluster_floor = 0.5

[keys]
school_id = "sch_id"

[server]
addr = "0.0.0.0:9000"
session_ttl = "1h"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Topology != "clusters.topojson" || cfg.Table != "capacity.csv" || cfg.Year != "2017" {
		t.Errorf("inputs = %q %q %q", cfg.Topology, cfg.Table, cfg.Year)
	}
	if cfg.ClusterFloor != 0.5 || cfg.Keys.SchoolID != "sch_id" {
		t.Errorf("floor = %v, keys = %+v", cfg.ClusterFloor, cfg.Keys)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" || cfg.Server.SessionTTL.Hours() != 1 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Redis != nil {
		t.Error("redis section should stay nil when absent")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.toml")
	if err := os.WriteFile(unknown, []byte("colour = \"red\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(unknown); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("unknown key: err = %v", err)
	}

	broken := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(broken, []byte("year = \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(broken); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("broken file: err = %v", err)
	}

	if _, err := loadConfig(filepath.Join(dir, "missing.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("explicit missing file: err = %v", err)
	}

	// The default location may be absent.
	t.Setenv("XDG_CONFIG_HOME", dir)
	if _, err := loadConfig(""); err != nil {
		t.Errorf("missing default config: err = %v", err)
	}
}

func TestMergeOptions(t *testing.T) {
	c := New(io.Discard, LogInfo)
	c.config = Config{Options: pipeline.Options{
		Topology: "file.topojson",
		Table:    "file.csv",
		Year:     "2015",
		Palette:  "viridis",
		Keys:     geo.Keys{SchoolID: "sch_id"},
	}}

	cmd := &cobra.Command{Use: "test"}
	flags := inputFlags{}
	flags.register(cmd)
	if err := cmd.Flags().Set("year", "2017"); err != nil {
		t.Fatal(err)
	}

	opts := c.mergeOptions(cmd, flags.opts, []string{"arg.topojson"})
	if opts.Year != "2017" {
		t.Errorf("Year = %q, flag should win", opts.Year)
	}
	if opts.Palette != "viridis" {
		t.Errorf("Palette = %q, config should fill unset flags", opts.Palette)
	}
	if opts.Topology != "arg.topojson" || opts.Table != "file.csv" {
		t.Errorf("inputs = %q %q", opts.Topology, opts.Table)
	}
	if opts.Keys.SchoolID != "sch_id" {
		t.Errorf("Keys = %+v", opts.Keys)
	}
	if opts.Logger != c.Logger {
		t.Error("Logger not set")
	}
}

func TestClusterRanking(t *testing.T) {
	rows, err := clusterRanking(testDataset(t, false))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].ID != "A" || !rows[0].Defined || rows[0].Percent != 120 {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[1].ID != "B" || rows[1].Defined {
		t.Errorf("cluster without schools should sort last: %+v", rows[1])
	}

	rows, err = clusterRanking(testDataset(t, true))
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].ID != "A" || rows[1].ID != "B" || rows[1].Percent != 75 {
		t.Errorf("ranking = %+v", rows)
	}
}

func TestCount(t *testing.T) {
	if got := count(1234567); got != "1,234,567" {
		t.Errorf("count() = %q", got)
	}
	if got := count(99.6); got != "100" {
		t.Errorf("count() = %q", got)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m exploreModel, keys ...string) exploreModel {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(exploreModel)
	}
	return m
}

func TestExploreModel(t *testing.T) {
	m, err := newExploreModel(testDataset(t, true))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		keys    []string
		level   selection.Level
		cluster string
		school  string
		cursor  int
	}{
		{"start", nil, selection.None, "", "", 0},
		{"pick cluster", []string{"enter"}, selection.Cluster, "A", "", 0},
		{"pick school", []string{"enter"}, selection.School, "A", "101", 0},
		{"back to cluster", []string{"esc"}, selection.Cluster, "A", "", 0},
		{"back to overview", []string{"esc"}, selection.None, "", "", 0},
		{"second cluster", []string{"down", "enter"}, selection.Cluster, "B", "", 0},
		{"its school", []string{"enter"}, selection.School, "B", "102", 0},
		{"reset", []string{"r"}, selection.None, "", "", 0},
		{"cursor clamps", []string{"down", "down", "down"}, selection.None, "", "", 1},
	}
	for _, tt := range tests {
		m = press(t, m, tt.keys...)
		s := m.ctrl.State()
		if s.Level != tt.level || s.Cluster != tt.cluster || s.School != tt.school {
			t.Errorf("%s: state = %+v", tt.name, s)
		}
		if m.cursor != tt.cursor {
			t.Errorf("%s: cursor = %d, want %d", tt.name, m.cursor, tt.cursor)
		}
		if m.err != nil {
			t.Errorf("%s: err = %v", tt.name, m.err)
		}
	}

	if view := m.View(); view == "" {
		t.Error("View() should render")
	}
}

func TestExploreBackRestoresCursor(t *testing.T) {
	m, err := newExploreModel(testDataset(t, true))
	if err != nil {
		t.Fatal(err)
	}
	m = press(t, m, "down", "enter", "esc")
	if m.ctrl.State().Level != selection.None {
		t.Fatalf("state = %+v", m.ctrl.State())
	}
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want the cluster just left", m.cursor)
	}
	if len(m.items()) != 2 {
		t.Errorf("items = %d, want the cluster list", len(m.items()))
	}
}

func TestAssignSchools(t *testing.T) {
	topo, err := geo.Parse([]byte(testTopology))
	if err != nil {
		t.Fatal(err)
	}
	clusters, err := topo.Clusters(geo.DefaultKeys)
	if err != nil {
		t.Fatal(err)
	}
	schools, err := topo.Schools(geo.DefaultKeys)
	if err != nil {
		t.Fatal(err)
	}

	missing := assignSchools(clusters, schools, false)
	if len(missing) != 1 || missing["102"] != "B" {
		t.Errorf("assignSchools(missing) = %v", missing)
	}

	all := assignSchools(clusters, schools, true)
	if len(all) != 2 || all["101"] != "A" {
		t.Errorf("assignSchools(overwrite) = %v", all)
	}
}
