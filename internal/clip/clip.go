// Package clip implements the buffer-and-clip planner (spec.md §4.3, C3):
// it estimates how far off-AOI terrain could still cast a shadow into the
// AOI over the analysis period, then produces a clipped DTM/DSM window
// padded by that distance.
package clip

import (
	"math"
	"time"

	"github.com/stbrinkmann/shadowscan/internal/geo"
	"github.com/stbrinkmann/shadowscan/internal/shaderr"
	"github.com/stbrinkmann/shadowscan/internal/solarpos"
)

// Result is the output of Plan: the clipped DTM/DSM/heights windows, the
// buffer actually used, and the pixel offsets the clip was taken at
// (needed to translate AOI-cell indices back later).
type Result struct {
	DTM, DSM, Heights *geo.Grid
	BufferMeters       float64
	RowOffset, ColOffset int
}

// Plan derives the buffer distance and clips dtm/dsm to a window containing
// the AOI plus every cell that could plausibly cast a shadow into it
// between start and end.
func Plan(dtm, dsm *geo.Grid, aoi geo.Polygon, start, end time.Time, overrideBufferMeters float64, geographic bool) (*Result, error) {
	if !dtm.SameShape(dsm) {
		return nil, shaderr.Configf("clip", "DTM shape %dx%d does not match DSM shape %dx%d", dtm.Rows, dtm.Cols, dsm.Rows, dsm.Cols)
	}

	inv := dtm.Transform.Invert()
	minCol, minRow := inv.WorldToPixel(aoi.Bound.Min.X(), aoi.Bound.Max.Y())
	maxCol, maxRow := inv.WorldToPixel(aoi.Bound.Max.X(), aoi.Bound.Min.Y())
	rMin, rMax := intBounds(minRow, maxRow)
	cMin, cMax := intBounds(minCol, maxCol)
	if rMax < 0 || cMax < 0 || rMin >= dtm.Rows || cMin >= dtm.Cols {
		return nil, shaderr.Configf("clip", "AOI is outside raster bounds")
	}

	bufferMeters := overrideBufferMeters
	if bufferMeters <= 0 {
		deltaH := maxHeightDifferential(dtm, dsm, rMin, rMax, cMin, cMax)
		minElev := minSolarElevation(aoi, start, end, geographic)
		bufferMeters = bufferFromGeometry(deltaH, minElev)
	}

	resolution := dtm.Transform.ResolutionMeters(geographic, aoi.Centroid.Y())
	bufferPx := bufferMeters / resolution
	if geographic {
		// Distinct geographic conversion kept explicit per spec.md §4.3 step 5
		// (buffer_deg uses a slightly different mean-latitude formula than the
		// general ResolutionMeters helper).
		const metersPerDegree = 111320.0
		lat0 := aoi.Centroid.Y()
		bufferDeg := bufferMeters / ((metersPerDegree*math.Cos(lat0*math.Pi/180.0) + metersPerDegree) / 2)
		bufferPx = bufferDeg / math.Abs(dtm.Transform.SX)
	}

	rowOff := rMin - int(math.Ceil(bufferPx))
	colOff := cMin - int(math.Ceil(bufferPx))
	rowEnd := rMax + int(math.Ceil(bufferPx)) + 1
	colEnd := cMax + int(math.Ceil(bufferPx)) + 1

	if rowOff < 0 {
		rowOff = 0
	}
	if colOff < 0 {
		colOff = 0
	}
	if rowEnd > dtm.Rows {
		rowEnd = dtm.Rows
	}
	if colEnd > dtm.Cols {
		colEnd = dtm.Cols
	}
	if rowEnd <= rowOff || colEnd <= colOff {
		return nil, shaderr.Configf("clip", "clip window is degenerate after buffering")
	}

	clippedDTM, err := dtm.Clip(rowOff, colOff, rowEnd-rowOff, colEnd-colOff)
	if err != nil {
		return nil, shaderr.New("clip", shaderr.Config, err)
	}
	clippedDSM, err := dsm.Clip(rowOff, colOff, rowEnd-rowOff, colEnd-colOff)
	if err != nil {
		return nil, shaderr.New("clip", shaderr.Config, err)
	}

	heights := geo.NewGrid(clippedDTM.Rows, clippedDTM.Cols, clippedDTM.Transform, clippedDTM.CRS)
	for i := range heights.Data {
		d, s := clippedDTM.Data[i], clippedDSM.Data[i]
		if d == geo.NoData || s == geo.NoData {
			heights.Data[i] = geo.NoData
			continue
		}
		h := s - d
		if h < 0 {
			h = 0
		}
		heights.Data[i] = h
	}

	return &Result{
		DTM:          clippedDTM,
		DSM:          clippedDSM,
		Heights:      heights,
		BufferMeters: bufferMeters,
		RowOffset:    rowOff,
		ColOffset:    colOff,
	}, nil
}

func intBounds(a, b float64) (lo, hi int) {
	lo = int(math.Floor(math.Min(a, b)))
	hi = int(math.Ceil(math.Max(a, b)))
	return
}

// maxHeightDifferential estimates ΔH = max(DSM) - min(DTM inside AOI) over
// the AOI's pixel bounding box, clamped to at least 10 meters.
func maxHeightDifferential(dtm, dsm *geo.Grid, rMin, rMax, cMin, cMax int) float64 {
	maxDSM := float32(math.Inf(-1))
	minDTM := float32(math.Inf(1))
	found := false
	for r := rMin; r <= rMax; r++ {
		for c := cMin; c <= cMax; c++ {
			dv := dtm.At(r, c)
			sv := dsm.At(r, c)
			if dv == geo.NoData || sv == geo.NoData {
				continue
			}
			found = true
			if sv > maxDSM {
				maxDSM = sv
			}
			if dv < minDTM {
				minDTM = dv
			}
		}
	}
	if !found {
		return 10
	}
	dh := float64(maxDSM - minDTM)
	if dh < 10 {
		dh = 10
	}
	return dh
}

// minSolarElevation samples C1 at 08/10/12/14/16 local-UTC on a weekly
// cadence over [start, end], plus the closer solstice, and returns the
// smallest positive elevation observed (spec.md §4.3 step 2).
func minSolarElevation(aoi geo.Polygon, start, end time.Time, geographic bool) float64 {
	lat, lon := aoi.Centroid.Y(), aoi.Centroid.X()
	calc := solarpos.NewCalculator(lat, lon, 0)

	minElev := math.Inf(1)
	sample := func(t time.Time) {
		p := calc.At(t)
		if p.ElevationDeg > 0 && p.ElevationDeg < minElev {
			minElev = p.ElevationDeg
		}
	}

	hours := []int{8, 10, 12, 14, 16}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 7) {
		for _, h := range hours {
			sample(time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, time.UTC))
		}
	}

	solsticeMonth, solsticeDay := time.December, 21
	if lat <= 0 {
		solsticeMonth, solsticeDay = time.June, 21
	}
	for y := start.Year(); y <= end.Year(); y++ {
		solstice := time.Date(y, solsticeMonth, solsticeDay, 12, 0, 0, 0, time.UTC)
		if !solstice.Before(start) && !solstice.After(end) {
			for _, h := range hours {
				sample(time.Date(y, solsticeMonth, solsticeDay, h, 0, 0, 0, time.UTC))
			}
		}
	}

	if math.IsInf(minElev, 1) {
		return 0.1
	}
	if minElev < 0.1 {
		minElev = 0.1
	}
	return minElev
}

// bufferFromGeometry turns (ΔH, εmin) into a clamped buffer distance in
// meters (spec.md §4.3 steps 3-4).
func bufferFromGeometry(deltaH, minElevDeg float64) float64 {
	var shadowLenMax float64
	if minElevDeg > 0.1 {
		shadowLenMax = deltaH / math.Tan(minElevDeg*math.Pi/180.0)
	} else {
		shadowLenMax = 5000 // fixed large fallback, same order as the clamp ceiling
	}
	buf := shadowLenMax * 1.2
	if buf < 50 {
		buf = 50
	}
	if buf > 5000 {
		buf = 5000
	}
	return buf
}
