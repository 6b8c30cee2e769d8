package mapview

import (
	"slices"

	"github.com/twpayne/go-geom"

	"github.com/schoolmaps/overcrowding/pkg/capacity"
	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/geo"
	"github.com/schoolmaps/overcrowding/pkg/heatmap"
	"github.com/schoolmaps/overcrowding/pkg/scale"
)

// Config sets the frame and projection of a map.
type Config struct {
	Width      float64
	Height     float64
	Projection geo.Projection // nil means geo.USAlbers()
}

// Cluster is a projected cluster outline with its statistics.
type Cluster struct {
	heatmap.Stats
	Path     string     `json:"path"`
	Bounds   [4]float64 `json:"bounds"` // min-x, min-y, max-x, max-y
	Centroid [2]float64 `json:"centroid"`
	Zoom     geo.Zoom   `json:"zoom"`
}

// School is a projected school marker with its statistics.
type School struct {
	heatmap.Stats
	Cluster string  `json:"cluster,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Map is the screen-space model of one dataset. It is immutable once built.
type Map struct {
	Width        float64               `json:"width"`
	Height       float64               `json:"height"`
	Clusters     []Cluster             `json:"clusters"`
	Schools      []School              `json:"schools"`
	Borders      string                `json:"borders,omitempty"`
	Summary      capacity.Summary      `json:"summary"`
	Legend       []heatmap.LegendEntry `json:"legend,omitempty"`
	ClusterScale *scale.Bounds         `json:"cluster_scale,omitempty"`
	SchoolScale  *scale.Bounds         `json:"school_scale,omitempty"`

	clusterIndex map[string]int
	schoolIndex  map[string]int
}

// New projects clusters, schools and the border mesh into the frame and
// attaches heatmap colors and statistics. borders may be nil. Schools
// without a location get no marker.
func New(cfg Config, hm *heatmap.Heatmap, clusters []geo.Cluster, schools []geo.School, borders *geom.MultiLineString) (*Map, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "map size must be positive, got %vx%v", cfg.Width, cfg.Height)
	}
	if hm == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "heatmap is required")
	}
	if cfg.Projection == nil {
		cfg.Projection = geo.USAlbers()
	}

	geoms := make([]geom.T, 0, len(clusters))
	for _, c := range clusters {
		if c.Geometry != nil {
			geoms = append(geoms, c.Geometry)
		}
	}
	proj := geo.NewProjector(cfg.Projection, cfg.Width, cfg.Height, geoms...)

	m := &Map{
		Width:        cfg.Width,
		Height:       cfg.Height,
		Clusters:     make([]Cluster, 0, len(clusters)),
		Schools:      make([]School, 0, len(schools)),
		Summary:      hm.Summary(),
		Legend:       hm.Legend(0),
		clusterIndex: make(map[string]int, len(clusters)),
		schoolIndex:  make(map[string]int, len(schools)),
	}
	if b, ok := hm.ClusterBounds(); ok {
		m.ClusterScale = &b
	}
	if b, ok := hm.SchoolBounds(); ok {
		m.SchoolScale = &b
	}

	for _, c := range clusters {
		if c.Geometry == nil {
			continue
		}
		screen := proj.Geometry(c.Geometry)
		b := screen.Bounds()
		centroid := geo.Centroid(screen)

		mc := Cluster{
			Stats:    clusterStats(hm, c),
			Path:     pathData(screen),
			Bounds:   [4]float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)},
			Centroid: [2]float64{centroid[0], centroid[1]},
			Zoom:     geo.ZoomTo(b, centroid, cfg.Width, cfg.Height),
		}
		m.clusterIndex[c.ID] = len(m.Clusters)
		m.Clusters = append(m.Clusters, mc)
	}

	for _, s := range schools {
		if s.Location == nil || len(s.Location.FlatCoords()) < 2 {
			continue
		}
		if _, dup := m.schoolIndex[s.ID]; dup {
			continue
		}
		c := s.Location.FlatCoords()
		x, y := proj.Point(c[0], c[1])
		m.schoolIndex[s.ID] = len(m.Schools)
		m.Schools = append(m.Schools, School{
			Stats:   schoolStats(hm, s),
			Cluster: s.ClusterID,
			X:       x,
			Y:       y,
		})
	}

	if borders != nil && borders.NumLineStrings() > 0 {
		m.Borders = pathData(proj.Geometry(borders))
	}
	return m, nil
}

func clusterStats(hm *heatmap.Heatmap, c geo.Cluster) heatmap.Stats {
	st, err := hm.ClusterStats(c.ID)
	if err != nil {
		st = heatmap.Stats{ID: c.ID, Color: hm.ClusterColor(c.ID).String()}
	}
	st.Name = c.Name
	return st
}

func schoolStats(hm *heatmap.Heatmap, s geo.School) heatmap.Stats {
	st, err := hm.SchoolStats(s.ID)
	if err != nil {
		st = heatmap.Stats{ID: s.ID, Color: hm.SchoolColor(s.ID).String()}
	}
	st.Name = s.Name
	return st
}

// Cluster returns a cluster by ID.
func (m *Map) Cluster(id string) (Cluster, bool) {
	i, ok := m.clusterIndex[id]
	if !ok {
		return Cluster{}, false
	}
	return m.Clusters[i], true
}

// School returns a school marker by ID.
func (m *Map) School(id string) (School, bool) {
	i, ok := m.schoolIndex[id]
	if !ok {
		return School{}, false
	}
	return m.Schools[i], true
}

// SchoolsIn returns the markers of one cluster.
func (m *Map) SchoolsIn(cluster string) []School {
	var out []School
	for _, s := range m.Schools {
		if s.Cluster == cluster {
			out = append(out, s)
		}
	}
	return out
}

// Zoom returns the focus transform for a cluster, or the overview when the
// cluster is empty or unknown.
func (m *Map) Zoom(cluster string) geo.Zoom {
	if c, ok := m.Cluster(cluster); ok {
		return c.Zoom
	}
	return geo.Overview(m.Width, m.Height)
}

// ClusterIDs returns the IDs of all drawn clusters in draw order.
func (m *Map) ClusterIDs() []string {
	ids := make([]string, len(m.Clusters))
	for i, c := range m.Clusters {
		ids[i] = c.ID
	}
	return slices.Clip(ids)
}
