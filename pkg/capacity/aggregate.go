package capacity

import "sort"

// SchoolRecord is one school's raw capacity and enrollment figures.
// A nil Capacity or Enrollment means the value is absent from the source
// table.
type SchoolRecord struct {
	ID         string
	ClusterID  string
	Name       string
	Capacity   *float64
	Enrollment *float64
}

// Contributes reports whether the record takes part in aggregation: both
// figures present and a positive capacity.
func (r SchoolRecord) Contributes() bool {
	return r.Capacity != nil && r.Enrollment != nil && *r.Capacity > 0
}

// Ratio is an (enrollment, capacity) pair for a school, a cluster or the
// county total.
type Ratio struct {
	Enrollment float64 `json:"enrollment"`
	Capacity   float64 `json:"capacity"`
}

// Value returns enrollment/capacity. The second result is false when the
// capacity is not positive, in which case the ratio is undefined.
func (r Ratio) Value() (float64, bool) {
	if r.Capacity <= 0 {
		return 0, false
	}
	return r.Enrollment / r.Capacity, true
}

// Defined reports whether the ratio has a value.
func (r Ratio) Defined() bool {
	return r.Capacity > 0
}

// Over reports whether a defined ratio exceeds capacity.
func (r Ratio) Over() bool {
	return r.Defined() && r.Enrollment > r.Capacity
}

func (r *Ratio) add(o Ratio) {
	r.Enrollment += o.Enrollment
	r.Capacity += o.Capacity
}

// Result holds aggregated ratios. It is computed once per load and must be
// treated as read-only afterwards.
type Result struct {
	PerSchool  map[string]Ratio `json:"schools"`
	PerCluster map[string]Ratio `json:"clusters"`
	Total      Ratio            `json:"total"`
}

// Aggregate turns raw school records into per-school, per-cluster and county
// ratios.
//
// Only contributing records (see [SchoolRecord.Contributes]) appear in
// PerSchool and add to their cluster and to the total. Cluster and total
// ratios are sum(enrollment)/sum(capacity) over contributing schools, not a
// mean of school ratios. Every cluster referenced by any record gets a
// PerCluster entry; a cluster without contributing schools keeps a zero
// capacity and therefore an undefined ratio.
func Aggregate(records []SchoolRecord) Result {
	res := Result{
		PerSchool:  make(map[string]Ratio),
		PerCluster: make(map[string]Ratio),
	}

	// First pass: accumulate sums.
	for _, rec := range records {
		if rec.ClusterID != "" {
			if _, ok := res.PerCluster[rec.ClusterID]; !ok {
				res.PerCluster[rec.ClusterID] = Ratio{}
			}
		}
		if !rec.Contributes() {
			continue
		}
		own := Ratio{Enrollment: *rec.Enrollment, Capacity: *rec.Capacity}
		res.PerSchool[rec.ID] = own
		if rec.ClusterID != "" {
			sum := res.PerCluster[rec.ClusterID]
			sum.add(own)
			res.PerCluster[rec.ClusterID] = sum
		}
		res.Total.add(own)
	}

	// Ratios are derived on demand from the finished sums (second pass),
	// so nothing is divided until every school has been scanned.
	return res
}

// School returns the ratio for a school and whether it contributed.
func (r Result) School(id string) (Ratio, bool) {
	ratio, ok := r.PerSchool[id]
	return ratio, ok
}

// Cluster returns the summed ratio for a cluster. The second result is
// false when the cluster is unknown or has no contributing capacity.
func (r Result) Cluster(id string) (Ratio, bool) {
	ratio, ok := r.PerCluster[id]
	return ratio, ok && ratio.Defined()
}

// SchoolValues returns the defined school ratio values keyed by school ID.
func (r Result) SchoolValues() map[string]float64 {
	return values(r.PerSchool)
}

// ClusterValues returns the defined cluster ratio values keyed by cluster
// ID. Clusters with undefined ratios are omitted.
func (r Result) ClusterValues() map[string]float64 {
	return values(r.PerCluster)
}

// ClusterIDs returns all cluster IDs, including undefined ones, sorted.
func (r Result) ClusterIDs() []string {
	ids := make([]string, 0, len(r.PerCluster))
	for id := range r.PerCluster {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func values(m map[string]Ratio) map[string]float64 {
	out := make(map[string]float64, len(m))
	for id, ratio := range m {
		if v, ok := ratio.Value(); ok {
			out[id] = v
		}
	}
	return out
}
