package capacity

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

// Record types found in the Type column.
const (
	KindCapacity   = "Capacity"
	KindEnrollment = "Enrollment"
)

// DefaultYear is the table year used when none is configured.
const DefaultYear = "2016"

// requiredColumns are the header names every capacity table must carry.
var requiredColumns = []string{"sch_id", "year", "Type", "Value"}

// Row is a single line of the capacity table.
type Row struct {
	SchoolID string `csv:"sch_id"`
	Year     string `csv:"year"`
	Type     string `csv:"Type"`
	Value    string `csv:"Value"`
}

type rowKey struct {
	school, year, kind string
}

// Table is an indexed capacity/enrollment table.
type Table struct {
	rows  []Row
	index map[rowKey]int
}

// ReadTable decodes a CSV capacity table from r.
// Columns other than sch_id, year, Type and Value are ignored.
func ReadTable(r io.Reader) (*Table, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.New(errors.ErrCodeInvalidTable, "capacity table is empty")
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidTable, err, "read capacity table header")
	}

	header := dec.Header()
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			return nil, errors.New(errors.ErrCodeInvalidTable, "capacity table is missing column %q", col)
		}
	}

	var rows []Row
	for {
		var row Row
		if err := dec.Decode(&row); err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrap(errors.ErrCodeInvalidTable, err, "decode capacity row %d", len(rows)+2)
		}
		rows = append(rows, row)
	}
	return NewTable(rows), nil
}

// NewTable indexes rows for lookup. When several rows share a school, year
// and type, the first one wins.
func NewTable(rows []Row) *Table {
	t := &Table{rows: rows, index: make(map[rowKey]int, len(rows))}
	for i, row := range rows {
		k := rowKey{strings.TrimSpace(row.SchoolID), strings.TrimSpace(row.Year), strings.TrimSpace(row.Type)}
		if _, dup := t.index[k]; dup {
			continue
		}
		t.index[k] = i
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Lookup returns the numeric value for a school, year and record type.
// Missing rows, empty values and non-numeric values are reported as absent.
func (t *Table) Lookup(schoolID, year, kind string) (float64, bool) {
	i, ok := t.index[rowKey{schoolID, year, kind}]
	if !ok {
		return 0, false
	}
	raw := strings.ReplaceAll(strings.TrimSpace(t.rows[i].Value), ",", "")
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Years returns the distinct years present in the table, sorted.
func (t *Table) Years() []string {
	seen := make(map[string]bool)
	var years []string
	for _, row := range t.rows {
		y := strings.TrimSpace(row.Year)
		if y == "" || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

// Member identifies a school and the cluster it belongs to.
type Member struct {
	ID        string
	ClusterID string
	Name      string
}

// Records joins members with the table for a fixed year, producing one
// record per member. Absent figures stay nil.
func (t *Table) Records(members []Member, year string) []SchoolRecord {
	records := make([]SchoolRecord, 0, len(members))
	for _, m := range members {
		rec := SchoolRecord{ID: m.ID, ClusterID: m.ClusterID, Name: m.Name}
		if v, ok := t.Lookup(m.ID, year, KindCapacity); ok {
			rec.Capacity = &v
		}
		if v, ok := t.Lookup(m.ID, year, KindEnrollment); ok {
			rec.Enrollment = &v
		}
		records = append(records, rec)
	}
	return records
}

// String implements fmt.Stringer for debugging.
func (t *Table) String() string {
	return fmt.Sprintf("capacity.Table(%d rows, years %v)", len(t.rows), t.Years())
}
