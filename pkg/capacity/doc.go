// Package capacity aggregates school capacity and enrollment figures into
// overcrowding ratios.
//
// # Overview
//
// Raw figures come from a capacity table with one row per
// (school, year, type) where type is "Capacity" or "Enrollment". A [Table]
// indexes those rows, and [Table.Records] joins them with the schools found
// in the map topology for a single year.
//
// [Aggregate] then produces a [Result]:
//
//   - PerSchool: the ratio of every contributing school
//   - PerCluster: summed ratios per cluster
//   - Total: the summed county ratio
//
// A school contributes only when both figures are present and its capacity
// is positive. Cluster and county ratios divide summed enrollment by summed
// capacity; they are never averages of school ratios:
//
//	A(cap=100, enr=120), B(cap=200, enr=150) in cluster X
//	=> X = 270/300 = 0.9   (mean of 1.2 and 0.75 would be 0.975)
//
// A [Ratio] with zero capacity is undefined; [Ratio.Value] reports false
// and callers render a neutral color instead of dividing.
package capacity
