package io

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/schoolmaps/overcrowding/pkg/capacity"
	"github.com/schoolmaps/overcrowding/pkg/errors"
)

// Row kinds.
const (
	KindCounty  = "county"
	KindCluster = "cluster"
	KindSchool  = "school"
)

// Ratios is the input of an export.
type Ratios struct {
	Year   string
	Result capacity.Result
	// Members lists every school on the map, including those without
	// figures. When empty only contributing schools are exported.
	Members      []capacity.Member
	ClusterNames map[string]string
}

// Row is one exported entity.
type Row struct {
	Kind       string   `csv:"kind" json:"kind"`
	ID         string   `csv:"id" json:"id"`
	Name       string   `csv:"name" json:"name"`
	Cluster    string   `csv:"cluster" json:"cluster,omitempty"`
	Enrollment float64  `csv:"enrollment" json:"enrollment"`
	Capacity   float64  `csv:"capacity" json:"capacity"`
	Ratio      *float64 `csv:"ratio,omitempty" json:"ratio,omitempty"`
	Percent    *int     `csv:"percent,omitempty" json:"percent,omitempty"`
	Over       bool     `csv:"over" json:"over"`
}

func newRow(kind, id, name, cluster string, r capacity.Ratio) Row {
	row := Row{
		Kind:       kind,
		ID:         id,
		Name:       name,
		Cluster:    cluster,
		Enrollment: r.Enrollment,
		Capacity:   r.Capacity,
		Over:       r.Over(),
	}
	if v, ok := r.Value(); ok {
		p := capacity.Percent(v)
		row.Ratio, row.Percent = &v, &p
	}
	if row.Name == "" {
		row.Name = id
	}
	return row
}

// Rows flattens the ratios: county, clusters, schools.
func (r Ratios) Rows() []Row {
	clusters, schools := r.clusterRows(), r.schoolRows()
	rows := make([]Row, 0, 1+len(clusters)+len(schools))
	rows = append(rows, r.countyRow())
	rows = append(rows, clusters...)
	return append(rows, schools...)
}

func (r Ratios) countyRow() Row {
	return newRow(KindCounty, KindCounty, "County", "", r.Result.Total)
}

func (r Ratios) clusterRows() []Row {
	ids := r.Result.ClusterIDs()
	for id := range r.ClusterNames {
		if _, ok := r.Result.PerCluster[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, newRow(KindCluster, id, r.ClusterNames[id], "", r.Result.PerCluster[id]))
	}
	return rows
}

func (r Ratios) schoolRows() []Row {
	members := r.Members
	if len(members) == 0 {
		for id := range r.Result.PerSchool {
			members = append(members, capacity.Member{ID: id})
		}
	}
	members = append([]capacity.Member(nil), members...)
	sort.SliceStable(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	rows := make([]Row, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		rows = append(rows, newRow(KindSchool, m.ID, m.Name, m.ClusterID, r.Result.PerSchool[m.ID]))
	}
	return rows
}

type document struct {
	Year     string           `json:"year,omitempty"`
	County   Row              `json:"county"`
	Summary  capacity.Summary `json:"summary"`
	Clusters []Row            `json:"clusters"`
	Schools  []Row            `json:"schools"`
}

// WriteRatiosJSON writes the ratios as one indented JSON object.
func WriteRatiosJSON(w io.Writer, r Ratios) error {
	doc := document{
		Year:     r.Year,
		County:   r.countyRow(),
		Summary:  capacity.Summarize(r.Result),
		Clusters: r.clusterRows(),
		Schools:  r.schoolRows(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteRatiosCSV writes [Ratios.Rows] as CSV with a header line.
func WriteRatiosCSV(w io.Writer, r Ratios) error {
	cw := csv.NewWriter(w)
	if err := csvutil.NewEncoder(cw).Encode(r.Rows()); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// ExportRatios writes the ratios to path, choosing CSV or JSON by the file
// extension.
func ExportRatios(path string, r Ratios) error {
	var write func(io.Writer, Ratios) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		write = WriteRatiosCSV
	case ".json":
		write = WriteRatiosJSON
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported export extension %q (want .csv or .json)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
