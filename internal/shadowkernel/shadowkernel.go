// Package shadowkernel implements the ray-march shadow kernel (spec.md
// §4.5, C5) and the adaptive edge-refinement pass (spec.md §4.6, C6).
package shadowkernel

import (
	"math"

	"github.com/stbrinkmann/shadowscan/internal/geo"
)

// Direction is the sun direction in pixel/height space, derived once per
// timestamp from (azimuth, elevation) and reused across every ray march.
type Direction struct {
	Dx, Dy, Dz float64
}

// NewDirection computes the sun direction for the given azimuth/elevation
// in degrees (spec.md §4.5).
func NewDirection(azimuthDeg, elevationDeg float64) Direction {
	azRad := azimuthDeg * math.Pi / 180.0
	elRad := elevationDeg * math.Pi / 180.0
	return Direction{
		Dx: math.Sin(azRad) * math.Cos(elRad),
		Dy: math.Cos(azRad) * math.Cos(elRad),
		Dz: math.Sin(elRad),
	}
}

const (
	wholeCellStep = 0.5
	subpixelStep  = 0.25
)

// CellShadow ray-marches from whole-cell (row, col) toward the sun and
// returns 1.0 if occluded, 0.0 if lit.
func CellShadow(dsm *geo.Grid, dir Direction, row, col int, bufferMeters, resolution float64) float32 {
	startHeight, ok := dsm.Bilinear(float64(row), float64(col))
	if !ok {
		startHeight = dsm.At(row, col)
	}
	return march(dsm, dir, float64(row), float64(col), float64(startHeight), wholeCellStep, bufferMeters, resolution)
}

// SubpixelShadow ray-marches from a fractional (row, col) toward the sun,
// used by edge refinement at finer step size.
func SubpixelShadow(dsm *geo.Grid, dir Direction, row, col, bufferMeters, resolution float64) float32 {
	startHeight, ok := dsm.Bilinear(row, col)
	if !ok {
		return 0
	}
	return march(dsm, dir, row, col, float64(startHeight), subpixelStep, bufferMeters, resolution)
}

// march walks from (x=col, y=row, z=startHeight) toward the sun in steps of
// stepSize pixel-units, advancing the metric height by
// Δz = dz·step·resolution (the corrected unit handling spec.md §9 calls
// out: the original source advances z by dz·step directly, which is only
// correct when resolution ≈ 1 m/px).
func march(dsm *geo.Grid, dir Direction, startRow, startCol, startHeight, stepSize, bufferMeters, resolution float64) float32 {
	x := startCol
	y := startRow
	z := startHeight

	maxDistance := bufferMeters / resolution
	distance := 0.0

	for distance < maxDistance {
		x += dir.Dx * stepSize
		y -= dir.Dy * stepSize
		z += dir.Dz * stepSize * resolution
		distance += stepSize

		if x < 0 || y < 0 || x >= float64(dsm.Cols)-1 || y >= float64(dsm.Rows)-1 {
			break
		}

		terrainHeight, ok := dsm.Bilinear(y, x)
		if !ok {
			break
		}
		if float64(terrainHeight) > z {
			return 1.0
		}
	}
	return 0.0
}

// IsEdge reports whether (row, col) differs from any of its 8 neighbors by
// more than 0.5 in the whole-cell map m (spec.md §4.6). Cells on the
// border of the window are never edges (neighbors would be out of range).
func IsEdge(m []float32, rows, cols, row, col int) bool {
	if row <= 0 || row >= rows-1 || col <= 0 || col >= cols-1 {
		return false
	}
	center := m[row*cols+col]
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			v := m[(row+dr)*cols+(col+dc)]
			if diff := v - center; diff > 0.5 || diff < -0.5 {
				return true
			}
		}
	}
	return false
}

// SubsampleCell replaces an edge cell's value with the mean of k×k
// subpixel ray-march samples at the cell centers of a regular k×k
// partition (spec.md §4.6).
func SubsampleCell(dsm *geo.Grid, dir Direction, row, col, k int, bufferMeters, resolution float64) float32 {
	if k <= 0 {
		return CellShadow(dsm, dir, row, col, bufferMeters, resolution)
	}
	step := 1.0 / float64(k)
	var sum float32
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			subRow := float64(row) + (float64(i)+0.5)*step
			subCol := float64(col) + (float64(j)+0.5)*step
			sum += SubpixelShadow(dsm, dir, subRow, subCol, bufferMeters, resolution)
		}
	}
	return sum / float32(k*k)
}

// Quality selects the k×k subsample grid used by edge refinement.
type Quality int

const (
	QualityFast Quality = iota
	QualityNormal
	QualityHigh
	QualityScientific
)

// SubsampleK returns the k dimension of the edge-refinement subsample grid
// for a given quality setting (spec.md §3: Fast=0, Normal=2x2, High=4x4,
// Scientific=8x8).
func (q Quality) SubsampleK() int {
	switch q {
	case QualityNormal:
		return 2
	case QualityHigh:
		return 4
	case QualityScientific:
		return 8
	default:
		return 0
	}
}

// RefineEdges detects boundary cells in the whole-cell map m and replaces
// each with a k×k subsample average, skipping entirely when quality is
// Fast (spec.md §4.6: "shadow_quality = Fast" disables refinement).
func RefineEdges(dsm *geo.Grid, dir Direction, m []float32, rows, cols int, quality Quality, bufferMeters, resolution float64) {
	k := quality.SubsampleK()
	if k == 0 {
		return
	}
	refined := make([]float32, len(m))
	copy(refined, m)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if IsEdge(m, rows, cols, r, c) {
				refined[r*cols+c] = SubsampleCell(dsm, dir, r, c, k, bufferMeters, resolution)
			}
		}
	}
	copy(m, refined)
}
