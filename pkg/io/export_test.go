package io

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schoolmaps/overcrowding/pkg/capacity"
	"github.com/schoolmaps/overcrowding/pkg/errors"
)

func f(v float64) *float64 { return &v }

func sample() Ratios {
	res := capacity.Aggregate([]capacity.SchoolRecord{
		{ID: "A", ClusterID: "X", Capacity: f(100), Enrollment: f(120)},
		{ID: "B", ClusterID: "X", Capacity: f(200), Enrollment: f(150)},
		{ID: "C", ClusterID: "Y", Capacity: f(0), Enrollment: f(10)},
	})
	return Ratios{
		Year:   "2016",
		Result: res,
		Members: []capacity.Member{
			{ID: "B", ClusterID: "X", Name: "Beta ES"},
			{ID: "A", ClusterID: "X", Name: "Alpha ES"},
			{ID: "C", ClusterID: "Y"},
		},
		ClusterNames: map[string]string{"X": "Northwood", "Y": "Southgate"},
	}
}

func TestRows(t *testing.T) {
	rows := sample().Rows()
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6", len(rows))
	}

	wantOrder := []string{"county", "X", "Y", "A", "B", "C"}
	for i, id := range wantOrder {
		if rows[i].ID != id {
			t.Errorf("row %d = %s, want %s", i, rows[i].ID, id)
		}
	}

	county := rows[0]
	if county.Kind != KindCounty || *county.Percent != 90 || county.Over {
		t.Errorf("county = %+v", county)
	}
	if y := rows[2]; y.Ratio != nil || y.Name != "Southgate" {
		t.Errorf("undefined cluster = %+v", y)
	}
	if a := rows[3]; a.Cluster != "X" || *a.Ratio != 1.2 || !a.Over {
		t.Errorf("school A = %+v", a)
	}
	if c := rows[5]; c.Ratio != nil || c.Name != "C" {
		t.Errorf("school without capacity = %+v", c)
	}
}

func TestRowsWithoutMembers(t *testing.T) {
	r := sample()
	r.Members = nil
	var schools int
	for _, row := range r.Rows() {
		if row.Kind == KindSchool {
			schools++
		}
	}
	if schools != 2 {
		t.Errorf("got %d school rows, want only the 2 contributing", schools)
	}
}

func TestWriteRatiosCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRatiosCSV(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want header + 6:\n%s", len(lines), buf.String())
	}
	if lines[0] != "kind,id,name,cluster,enrollment,capacity,ratio,percent,over" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "county,county,County,,270,300,0.9,90,") {
		t.Errorf("county line = %q", lines[1])
	}
	if !strings.HasPrefix(lines[3], "cluster,Y,Southgate,,0,0,,,") {
		t.Errorf("undefined cluster line = %q", lines[3])
	}
}

func TestWriteRatiosJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRatiosJSON(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Year    string `json:"year"`
		Summary struct {
			Percent      int `json:"percent"`
			OverEnrolled int `json:"over_enrolled"`
		} `json:"summary"`
		Clusters []Row `json:"clusters"`
		Schools  []Row `json:"schools"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Year != "2016" || doc.Summary.Percent != 90 || doc.Summary.OverEnrolled != 1 {
		t.Errorf("doc = %+v", doc)
	}
	if len(doc.Clusters) != 2 || len(doc.Schools) != 3 {
		t.Errorf("got %d clusters and %d schools", len(doc.Clusters), len(doc.Schools))
	}
}

func TestExportRatios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ratios.csv", "ratios.JSON"} {
		path := filepath.Join(dir, name)
		if err := ExportRatios(path, sample()); err != nil {
			t.Fatalf("ExportRatios(%s): %v", name, err)
		}
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	err := ExportRatios(filepath.Join(dir, "ratios.xlsx"), sample())
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("unsupported extension: err = %v", err)
	}
}
