// Package geo provides the affine transform, raster grid, and AOI polygon
// types shared across the shadow computation pipeline (spec.md §3).
package geo

import "math"

// Transform is the 6-element affine mapping pixel (col, row) to world (x, y):
//
//	x = OX + col*SX + row*RX
//	y = OY + col*RY + row*SY
//
// Typically RX = RY = 0 and SY < 0 (north-up raster).
type Transform struct {
	OX, SX, RX float64
	OY, RY, SY float64
}

// NewTransform builds a Transform from the 6-element array layout used by
// raster I/O: [ox, sx, rx, oy, ry, sy].
func NewTransform(t [6]float64) Transform {
	return Transform{OX: t[0], SX: t[1], RX: t[2], OY: t[3], RY: t[4], SY: t[5]}
}

// Array returns the 6-element array layout.
func (t Transform) Array() [6]float64 {
	return [6]float64{t.OX, t.SX, t.RX, t.OY, t.RY, t.SY}
}

// PixelToWorld converts pixel coordinates (col, row) to world (x, y).
func (t Transform) PixelToWorld(col, row float64) (x, y float64) {
	x = t.OX + col*t.SX + row*t.RX
	y = t.OY + col*t.RY + row*t.SY
	return
}

// Invert returns the inverse transform, cached by the caller per clipped
// window (spec.md §3: "Its inverse is cached once per clipped window").
func (t Transform) Invert() Transform {
	det := t.SX*t.SY - t.RX*t.RY
	return Transform{
		OX: (-t.OX*t.SY + t.RX*t.OY) / det,
		SX: t.SY / det,
		RX: -t.RX / det,
		OY: (t.OX*t.RY - t.SX*t.OY) / det,
		RY: -t.RY / det,
		SY: t.SX / det,
	}
}

// WorldToPixel converts world (x, y) to fractional pixel (col, row) using
// the already-inverted transform (call Transform.Invert() once and reuse).
func (inv Transform) WorldToPixel(x, y float64) (col, row float64) {
	col = inv.OX + inv.SX*x + inv.RX*y
	row = inv.OY + inv.RY*x + inv.SY*y
	return
}

// Translated returns a new transform for a window clipped to start at pixel
// (colOffset, rowOffset) of the original raster (spec.md §4.3 step 7).
func (t Transform) Translated(colOffset, rowOffset int) Transform {
	return Transform{
		OX: t.OX + float64(colOffset)*t.SX,
		SX: t.SX,
		RX: t.RX,
		OY: t.OY + float64(rowOffset)*t.SY,
		RY: t.RY,
		SY: t.SY,
	}
}

// ResolutionMeters estimates the ground resolution in meters per pixel.
// When geographic is true (CRS in degrees), SX is in degrees and is
// converted using the standard equirectangular approximation at the given
// latitude; otherwise SX is already in meters and is returned directly.
func (t Transform) ResolutionMeters(geographic bool, latDeg float64) float64 {
	res := math.Abs(t.SX)
	if !geographic {
		return res
	}
	const metersPerDegree = 111320.0
	return res * metersPerDegree * math.Cos(latDeg*math.Pi/180.0)
}
