package geo

import "github.com/paulmach/orb"

// Polygon wraps an orb.Ring with the bounding box and centroid the
// clip planner and selector need repeatedly, computed once at load time
// rather than per cell.
type Polygon struct {
	Ring     orb.Ring
	Bound    orb.Bound
	Centroid orb.Point
}

// NewPolygon builds a Polygon from a closed ring of (x, y) world points.
func NewPolygon(ring orb.Ring) Polygon {
	p := Polygon{Ring: ring, Bound: ring.Bound()}
	p.Centroid = centroid(ring)
	return p
}

// centroid computes the polygon centroid via the shoelace formula. Hand
// rolled rather than taken from an orb subpackage: the exact planar
// centroid helper name in this version of orb isn't something this
// codebase depends on elsewhere, and the formula is a handful of lines.
func centroid(ring orb.Ring) orb.Point {
	n := len(ring)
	if n == 0 {
		return orb.Point{}
	}
	if n < 3 {
		return ring[0]
	}
	var areaSum, cx, cy float64
	for i := 0; i < n; i++ {
		p0 := ring[i]
		p1 := ring[(i+1)%n]
		cross := p0.X()*p1.Y() - p1.X()*p0.Y()
		areaSum += cross
		cx += (p0.X() + p1.X()) * cross
		cy += (p0.Y() + p1.Y()) * cross
	}
	area := areaSum / 2
	if area == 0 {
		// Degenerate (collinear) ring: fall back to the vertex average.
		for _, p := range ring {
			cx += p.X()
			cy += p.Y()
		}
		return orb.Point{cx / float64(n), cy / float64(n)}
	}
	return orb.Point{cx / (6 * area), cy / (6 * area)}
}

// Contains reports whether (x, y) lies inside the polygon, using the
// standard ray-casting test (even-odd rule). Points exactly on the
// boundary may return either result, which is acceptable for the
// cell-center containment test C3/C4 need.
func (p Polygon) Contains(x, y float64) bool {
	if x < p.Bound.Min.X() || x > p.Bound.Max.X() || y < p.Bound.Min.Y() || y > p.Bound.Max.Y() {
		return false
	}
	ring := p.Ring
	n := len(ring)
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].X(), ring[i].Y()
		xj, yj := ring[j].X(), ring[j].Y()
		if (yi > y) != (yj > y) {
			xCross := xi + (y-yi)/(yj-yi)*(xj-xi)
			if x < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// MaxSideLength returns the longest edge of the polygon's bounding box in
// world units.
func (p Polygon) MaxSideLength() float64 {
	w := p.Bound.Max.X() - p.Bound.Min.X()
	h := p.Bound.Max.Y() - p.Bound.Min.Y()
	if w > h {
		return w
	}
	return h
}
