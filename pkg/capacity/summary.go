package capacity

import "math"

// Summary holds the county-wide statistics shown next to the map.
type Summary struct {
	Enrollment   float64 `json:"enrollment"`
	Capacity     float64 `json:"capacity"`
	Percent      int     `json:"percent"`
	Schools      int     `json:"schools"`
	OverEnrolled int     `json:"over_enrolled"`
	OverPercent  int     `json:"over_percent"`
}

// Summarize computes county statistics from an aggregation result.
// Percentages are rounded to the nearest integer and are zero when their
// denominator is zero.
func Summarize(r Result) Summary {
	s := Summary{
		Enrollment: r.Total.Enrollment,
		Capacity:   r.Total.Capacity,
		Schools:    len(r.PerSchool),
	}
	if v, ok := r.Total.Value(); ok {
		s.Percent = Percent(v)
	}
	for _, ratio := range r.PerSchool {
		if ratio.Over() {
			s.OverEnrolled++
		}
	}
	if s.Schools > 0 {
		s.OverPercent = Percent(float64(s.OverEnrolled) / float64(s.Schools))
	}
	return s
}

// Percent converts a ratio to a rounded percentage.
func Percent(v float64) int {
	return int(math.Round(v * 100))
}
