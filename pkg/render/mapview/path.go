package mapview

import (
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// pathData formats polygonal and linear geometries as SVG path data.
// Rings are closed with Z; line strings are left open.
func pathData(g geom.T) string {
	var b strings.Builder
	switch g := g.(type) {
	case *geom.MultiPolygon:
		for i := range g.NumPolygons() {
			writePolygon(&b, g.Polygon(i))
		}
	case *geom.Polygon:
		writePolygon(&b, g)
	case *geom.MultiLineString:
		for i := range g.NumLineStrings() {
			writeLine(&b, g.LineString(i).FlatCoords(), g.Stride(), false)
		}
	case *geom.LineString:
		writeLine(&b, g.FlatCoords(), g.Stride(), false)
	}
	return b.String()
}

func writePolygon(b *strings.Builder, p *geom.Polygon) {
	for i := range p.NumLinearRings() {
		writeLine(b, p.LinearRing(i).FlatCoords(), p.Stride(), true)
	}
}

func writeLine(b *strings.Builder, flat []float64, stride int, closed bool) {
	if stride < 2 || len(flat) < stride {
		return
	}
	for i := 0; i+1 < len(flat); i += stride {
		if i == 0 {
			b.WriteByte('M')
		} else {
			b.WriteByte('L')
		}
		b.WriteString(num(flat[i]))
		b.WriteByte(',')
		b.WriteString(num(flat[i+1]))
	}
	if closed {
		b.WriteByte('Z')
	}
}

// num formats a coordinate with at most two decimals.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
