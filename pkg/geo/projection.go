package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

const radians = math.Pi / 180

// Projection maps longitude/latitude in degrees to unscaled planar
// coordinates with y growing downward, as on screen.
type Projection interface {
	Project(lon, lat float64) (x, y float64)
}

// Albers is a conic equal-area projection.
type Albers struct {
	Parallels [2]float64
	Rotate    float64

	n, c, rho0 float64
}

// NewAlbers builds an Albers projection for two standard parallels and a
// longitude rotation, all in degrees.
func NewAlbers(phi0, phi1, rotate float64) *Albers {
	s0 := math.Sin(phi0 * radians)
	n := (s0 + math.Sin(phi1*radians)) / 2
	c := 1 + s0*(2*n-s0)
	return &Albers{
		Parallels: [2]float64{phi0, phi1},
		Rotate:    rotate,
		n:         n,
		c:         c,
		rho0:      math.Sqrt(c) / n,
	}
}

// USAlbers is the conterminous United States Albers projection.
func USAlbers() *Albers { return NewAlbers(29.5, 45.5, 96) }

// Project implements Projection.
func (a *Albers) Project(lon, lat float64) (float64, float64) {
	lambda := (lon + a.Rotate) * radians
	if lambda > math.Pi {
		lambda -= 2 * math.Pi
	} else if lambda < -math.Pi {
		lambda += 2 * math.Pi
	}
	phi := lat * radians
	rho := math.Sqrt(a.c-2*a.n*math.Sin(phi)) / a.n
	x := rho * math.Sin(lambda*a.n)
	y := a.rho0 - rho*math.Cos(lambda*a.n)
	return x, -y
}

// Equirectangular is the plate carrée projection.
type Equirectangular struct{}

// Project implements Projection.
func (Equirectangular) Project(lon, lat float64) (float64, float64) {
	return lon * radians, -lat * radians
}

// Identity leaves planar coordinates untouched, with y already pointing
// down.
type Identity struct{}

// Project implements Projection.
func (Identity) Project(x, y float64) (float64, float64) { return x, y }

// Projection names accepted by ParseProjection.
const (
	ProjectionAlbers          = "albers"
	ProjectionEquirectangular = "equirectangular"
	ProjectionIdentity        = "identity"
)

// ParseProjection returns a projection by name.
func ParseProjection(name string) (Projection, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProjectionAlbers:
		return USAlbers(), nil
	case ProjectionEquirectangular:
		return Equirectangular{}, nil
	case ProjectionIdentity:
		return Identity{}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidInput,
		"unknown projection %q (available: albers, equirectangular, identity)", name)
}

// Affine is a uniform scale followed by a translation.
type Affine struct {
	K, X, Y float64
}

// Apply transforms a point.
func (a Affine) Apply(x, y float64) (float64, float64) {
	return x*a.K + a.X, y*a.K + a.Y
}

// Fit scales bounds to 95% of a width x height frame and centers them.
// Empty or degenerate bounds get a unit scale centered on the frame.
func Fit(b *geom.Bounds, width, height float64) Affine {
	if b == nil || b.IsEmpty() {
		return Affine{K: 1, X: width / 2, Y: height / 2}
	}
	dx := b.Max(0) - b.Min(0)
	dy := b.Max(1) - b.Min(1)
	span := math.Max(dx/width, dy/height)
	k := 1.0
	if span > 0 && !math.IsInf(span, 0) {
		k = 0.95 / span
	}
	return Affine{
		K: k,
		X: (width - k*(b.Max(0)+b.Min(0))) / 2,
		Y: (height - k*(b.Max(1)+b.Min(1))) / 2,
	}
}

// Apply maps every coordinate of g through f and returns a new geometry.
// Unsupported geometry types are returned unchanged.
func Apply(g geom.T, f func(x, y float64) (float64, float64)) geom.T {
	var out geom.T
	switch s := g.(type) {
	case *geom.Point:
		out = s.Clone()
	case *geom.MultiPoint:
		out = s.Clone()
	case *geom.LineString:
		out = s.Clone()
	case *geom.MultiLineString:
		out = s.Clone()
	case *geom.Polygon:
		out = s.Clone()
	case *geom.MultiPolygon:
		out = s.Clone()
	default:
		return g
	}
	flat, stride := out.FlatCoords(), out.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		flat[i], flat[i+1] = f(flat[i], flat[i+1])
	}
	return out
}

// Projector projects geographic geometries onto a fitted screen frame.
type Projector struct {
	Projection Projection
	Affine     Affine
	Width      float64
	Height     float64
}

// NewProjector fits the projected extent of geoms into width x height.
func NewProjector(p Projection, width, height float64, geoms ...geom.T) *Projector {
	b := geom.NewBounds(geom.XY)
	for _, g := range geoms {
		if g == nil {
			continue
		}
		b.Extend(Apply(g, p.Project))
	}
	return &Projector{Projection: p, Affine: Fit(b, width, height), Width: width, Height: height}
}

// Point projects one longitude/latitude pair to screen coordinates.
func (p *Projector) Point(lon, lat float64) (float64, float64) {
	return p.Affine.Apply(p.Projection.Project(lon, lat))
}

// Geometry projects g to screen coordinates.
func (p *Projector) Geometry(g geom.T) geom.T {
	return Apply(g, p.Point)
}

// Centroid returns the area-weighted centroid of g, falling back to the
// center of its bounds.
func Centroid(g geom.T) geom.Coord {
	if c, err := xy.Centroid(g); err == nil && len(c) >= 2 && !math.IsNaN(c[0]) && !math.IsNaN(c[1]) {
		return c
	}
	b := g.Bounds()
	return geom.Coord{(b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2}
}

// Zoom is a focus transform: the point (X, Y) is moved to the center of the
// frame and the map is scaled by K.
type Zoom struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Overview returns the identity zoom for a frame.
func Overview(width, height float64) Zoom {
	return Zoom{X: width / 2, Y: height / 2, K: 1}
}

// ZoomTo frames a screen-space bounding box, centered on centroid, with a
// margin so the box fills two thirds of the frame.
func ZoomTo(b *geom.Bounds, centroid geom.Coord, width, height float64) Zoom {
	if b == nil || b.IsEmpty() {
		return Overview(width, height)
	}
	w := b.Max(0) - b.Min(0)
	h := b.Max(1) - b.Min(1)
	span := math.Max(w/width, h/height)
	if span <= 0 {
		return Zoom{X: centroid[0], Y: centroid[1], K: 1}
	}
	return Zoom{X: centroid[0], Y: centroid[1], K: 1 / (1.5 * span)}
}

// Transform formats the zoom as an SVG transform attribute.
func (z Zoom) Transform(width, height float64) string {
	return fmt.Sprintf("translate(%g,%g)scale(%g)translate(%g,%g)", width/2, height/2, z.K, -z.X, -z.Y)
}

// ViewBox returns the visible region (min-x, min-y, width, height) for the
// zoom.
func (z Zoom) ViewBox(width, height float64) [4]float64 {
	w, h := width/z.K, height/z.K
	return [4]float64{z.X - w/2, z.Y - h/2, w, h}
}
