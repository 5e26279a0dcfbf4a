package geo

import (
	"testing"

	"github.com/paulmach/orb"
)

func square(minX, minY, maxX, maxY float64) orb.Ring {
	return orb.Ring{
		{minX, minY},
		{maxX, minY},
		{maxX, maxY},
		{minX, maxY},
		{minX, minY},
	}
}

func TestPolygonContains(t *testing.T) {
	p := NewPolygon(square(0, 0, 10, 10))

	cases := []struct {
		name     string
		x, y     float64
		expected bool
	}{
		{"center", 5, 5, true},
		{"outside right", 15, 5, false},
		{"outside below", 5, -1, false},
		{"outside above bound", 5, 11, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := p.Contains(c.x, c.y); got != c.expected {
				t.Errorf("Contains(%v,%v) = %v, want %v", c.x, c.y, got, c.expected)
			}
		})
	}
}

func TestPolygonCentroidOfSquare(t *testing.T) {
	p := NewPolygon(square(0, 0, 10, 10))
	if p.Centroid.X() != 5 || p.Centroid.Y() != 5 {
		t.Errorf("centroid = (%v,%v), want (5,5)", p.Centroid.X(), p.Centroid.Y())
	}
}

func TestPolygonMaxSideLength(t *testing.T) {
	p := NewPolygon(square(0, 0, 10, 40))
	if got := p.MaxSideLength(); got != 40 {
		t.Errorf("MaxSideLength = %v, want 40", got)
	}
}
