// Package footprint computes the geometric envelope of the robot: the polygon outline in the
// base frame and the inscribed and circumscribed radii derived from it.
package footprint

import (
	"math"

	"github.com/golang/geo/r2"
)

// Polygon is an implicitly closed outline in the robot base frame: the last vertex connects
// back to the first.
type Polygon []r2.Point

// Radii holds the inscribed and circumscribed radius of a footprint, both centered on the robot
// origin.
type Radii struct {
	Inscribed     float64
	Circumscribed float64
}

// DefaultRadii returns the radii of a circular robot of the given radius.
func DefaultRadii(robotRadius float64) Radii {
	return Radii{Inscribed: robotRadius, Circumscribed: robotRadius}
}

// Clone returns a copy of p that shares no memory with it.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// CalculateRadii returns the radii of p. The circumscribed radius is the largest distance from
// the origin to a vertex; the inscribed radius is the smallest distance from the origin to an
// edge. An empty polygon yields DefaultRadii(defaultRadius).
func CalculateRadii(p Polygon, defaultRadius float64) Radii {
	if len(p) == 0 {
		return DefaultRadii(defaultRadius)
	}

	minDist, maxDist := math.Inf(1), 0.0
	for i, vertex := range p {
		vertexDist := vertex.Norm()
		minDist = math.Min(minDist, vertexDist)
		maxDist = math.Max(maxDist, vertexDist)

		next := p[(i+1)%len(p)]
		minDist = math.Min(minDist, DistanceToSegment(r2.Point{}, vertex, next))
	}
	return Radii{Inscribed: minDist, Circumscribed: maxDist}
}

// DistanceToSegment returns the distance from point to the segment [a, b].
func DistanceToSegment(point, a, b r2.Point) float64 {
	ab := b.Sub(a)
	lengthSq := ab.Dot(ab)
	if lengthSq == 0 {
		return point.Sub(a).Norm()
	}
	t := point.Sub(a).Dot(ab) / lengthSq
	t = math.Max(0, math.Min(1, t))
	return point.Sub(a.Add(ab.Mul(t))).Norm()
}

// FromRadius approximates a circular robot with a regular polygon of n vertices whose
// circumscribed radius is radius. n below 3 is raised to 3.
func FromRadius(radius float64, n int) Polygon {
	if n < 3 {
		n = 3
	}
	p := make(Polygon, n)
	for i := range p {
		angle := 2 * math.Pi * float64(i) / float64(n)
		p[i] = r2.Point{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
	}
	return p
}

// Padded grows every vertex of p away from the origin along each axis by padding, matching
// the usual footprint padding of navigation stacks.
func Padded(p Polygon, padding float64) Polygon {
	out := p.Clone()
	for i, v := range out {
		out[i] = r2.Point{X: v.X + sign(v.X)*padding, Y: v.Y + sign(v.Y)*padding}
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
