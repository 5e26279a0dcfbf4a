package geo

import "testing"

func TestTransformRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		t    Transform
		col  float64
		row  float64
	}{
		{"north-up identity-ish", NewTransform([6]float64{500000, 1, 0, 4000000, 0, -1}), 120.5, 40.25},
		{"rotated", NewTransform([6]float64{100, 0.8, -0.2, 200, 0.2, 0.8}), 15, 33},
		{"negative origin", NewTransform([6]float64{-50, 2, 0, 75, 0, -2}), 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			x, y := c.t.PixelToWorld(c.col, c.row)
			inv := c.t.Invert()
			gotCol, gotRow := inv.WorldToPixel(x, y)
			if diff := abs(gotCol - c.col); diff > 1e-9 {
				t.Errorf("col round-trip: got %v want %v (diff %v)", gotCol, c.col, diff)
			}
			if diff := abs(gotRow - c.row); diff > 1e-9 {
				t.Errorf("row round-trip: got %v want %v (diff %v)", gotRow, c.row, diff)
			}
		})
	}
}

func TestTransformTranslated(t *testing.T) {
	base := NewTransform([6]float64{0, 2, 0, 0, 0, -2})
	moved := base.Translated(5, 3)
	x, y := moved.PixelToWorld(0, 0)
	wantX, wantY := base.PixelToWorld(5, 3)
	if x != wantX || y != wantY {
		t.Errorf("translated origin = (%v,%v), want (%v,%v)", x, y, wantX, wantY)
	}
}

func TestResolutionMeters(t *testing.T) {
	geo := NewTransform([6]float64{0, 0.001, 0, 0, 0, -0.001})
	res := geo.ResolutionMeters(true, 45)
	if res <= 0 || res > 120 {
		t.Errorf("expected a plausible meters-per-pixel value at 45N, got %v", res)
	}
	proj := NewTransform([6]float64{0, 10, 0, 0, 0, -10})
	if got := proj.ResolutionMeters(false, 45); got != 10 {
		t.Errorf("projected CRS resolution should pass through unchanged, got %v", got)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
