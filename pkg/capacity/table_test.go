package capacity

import (
	"strings"
	"testing"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

const sampleTable = `sch_id,school_name,year,Type,Value
101,Alpha ES,2016,Capacity,100
101,Alpha ES,2016,Enrollment,120
101,Alpha ES,2015,Capacity,90
102,Beta ES,2016,Capacity,"1,200"
102,Beta ES,2016,Enrollment,
103,Gamma MS,2016,Capacity,n/a
103,Gamma MS,2016,Enrollment,300
101,Alpha ES,2016,Capacity,999
`

func TestReadTable(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(sampleTable))
	if err != nil {
		t.Fatalf("ReadTable() error: %v", err)
	}
	if tbl.Len() != 8 {
		t.Errorf("Len() = %d, want 8", tbl.Len())
	}

	tests := []struct {
		name   string
		school string
		year   string
		kind   string
		want   float64
		wantOK bool
	}{
		{"capacity", "101", "2016", KindCapacity, 100, true},
		{"first duplicate wins", "101", "2016", KindCapacity, 100, true},
		{"enrollment", "101", "2016", KindEnrollment, 120, true},
		{"other year", "101", "2015", KindCapacity, 90, true},
		{"thousands separator", "102", "2016", KindCapacity, 1200, true},
		{"empty value", "102", "2016", KindEnrollment, 0, false},
		{"non numeric", "103", "2016", KindCapacity, 0, false},
		{"missing row", "104", "2016", KindCapacity, 0, false},
		{"missing year", "101", "2017", KindEnrollment, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tbl.Lookup(tt.school, tt.year, tt.kind)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Lookup(%s, %s, %s) = %v, %v; want %v, %v",
					tt.school, tt.year, tt.kind, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestReadTableErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing column", "sch_id,year,Type\n101,2016,Capacity\n"},
		{"ragged row", "sch_id,year,Type,Value\n101,2016\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("ReadTable() should fail")
			}
			if !errors.Is(err, errors.ErrCodeInvalidTable) {
				t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidTable)
			}
		})
	}
}

func TestYears(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(sampleTable))
	if err != nil {
		t.Fatal(err)
	}
	years := tbl.Years()
	if len(years) != 2 || years[0] != "2015" || years[1] != "2016" {
		t.Errorf("Years() = %v, want [2015 2016]", years)
	}
}

func TestRecords(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(sampleTable))
	if err != nil {
		t.Fatal(err)
	}

	records := tbl.Records([]Member{
		{ID: "101", ClusterID: "X", Name: "Alpha ES"},
		{ID: "102", ClusterID: "X"},
		{ID: "104", ClusterID: "Y"},
	}, "2016")

	if len(records) != 3 {
		t.Fatalf("Records() returned %d records, want 3", len(records))
	}
	if r := records[0]; r.Capacity == nil || *r.Capacity != 100 || r.Enrollment == nil || *r.Enrollment != 120 {
		t.Errorf("record 101 = %+v", r)
	}
	if r := records[1]; r.Capacity == nil || r.Enrollment != nil {
		t.Errorf("record 102 should have capacity only: %+v", r)
	}
	if r := records[2]; r.Capacity != nil || r.Enrollment != nil {
		t.Errorf("record 104 should be empty: %+v", r)
	}

	res := Aggregate(records)
	if len(res.PerSchool) != 1 {
		t.Errorf("only 101 should contribute, got %v", res.PerSchool)
	}
	if _, ok := res.PerCluster["Y"]; !ok {
		t.Error("cluster Y should be listed even without data")
	}
}

func TestSummarize(t *testing.T) {
	res := Aggregate([]SchoolRecord{
		{ID: "A", ClusterID: "X", Capacity: f(100), Enrollment: f(120)},
		{ID: "B", ClusterID: "X", Capacity: f(200), Enrollment: f(150)},
		{ID: "C", ClusterID: "X", Capacity: f(0), Enrollment: f(10)},
	})
	s := Summarize(res)

	if s.Enrollment != 270 || s.Capacity != 300 {
		t.Errorf("totals = %v/%v, want 270/300", s.Enrollment, s.Capacity)
	}
	if s.Percent != 90 {
		t.Errorf("Percent = %d, want 90", s.Percent)
	}
	if s.Schools != 2 {
		t.Errorf("Schools = %d, want 2", s.Schools)
	}
	if s.OverEnrolled != 1 || s.OverPercent != 50 {
		t.Errorf("over = %d (%d%%), want 1 (50%%)", s.OverEnrolled, s.OverPercent)
	}

	empty := Summarize(Aggregate(nil))
	if empty.Percent != 0 || empty.OverPercent != 0 {
		t.Errorf("empty summary should have zero percentages: %+v", empty)
	}
}
