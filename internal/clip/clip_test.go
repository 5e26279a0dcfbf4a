package clip

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stbrinkmann/shadowscan/internal/geo"
)

func flatGrids(rows, cols int, dtmVal, dsmVal float32) (*geo.Grid, *geo.Grid) {
	transform := geo.NewTransform([6]float64{0, 1, 0, float64(rows), 0, -1})
	dtm := geo.NewGrid(rows, cols, transform, "EPSG:32633")
	dsm := geo.NewGrid(rows, cols, transform, "EPSG:32633")
	for i := range dtm.Data {
		dtm.Data[i] = dtmVal
		dsm.Data[i] = dsmVal
	}
	return dtm, dsm
}

func centeredAOI(rows, cols int) geo.Polygon {
	ring := orb.Ring{
		{float64(cols)/2 - 5, float64(rows)/2 - 5},
		{float64(cols)/2 + 5, float64(rows)/2 - 5},
		{float64(cols)/2 + 5, float64(rows)/2 + 5},
		{float64(cols)/2 - 5, float64(rows)/2 + 5},
		{float64(cols)/2 - 5, float64(rows)/2 - 5},
	}
	return geo.NewPolygon(ring)
}

func TestPlanProducesWindowContainingAOI(t *testing.T) {
	dtm, dsm := flatGrids(100, 100, 0, 0)
	aoi := centeredAOI(100, 100)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC)

	res, err := Plan(dtm, dsm, aoi, start, end, 0, false)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if res.Heights.Rows <= 10 || res.Heights.Cols <= 10 {
		t.Errorf("expected a padded window larger than the 10x10 AOI, got %dx%d", res.Heights.Rows, res.Heights.Cols)
	}
}

func TestPlanRejectsAOIOutsideRaster(t *testing.T) {
	dtm, dsm := flatGrids(50, 50, 0, 0)
	ring := orb.Ring{
		{1000, 1000}, {1010, 1000}, {1010, 1010}, {1000, 1010}, {1000, 1000},
	}
	aoi := geo.NewPolygon(ring)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)

	_, err := Plan(dtm, dsm, aoi, start, end, 0, false)
	if err == nil {
		t.Fatal("expected an error for an AOI entirely outside the raster")
	}
}

func TestPlanHeightsNeverNegative(t *testing.T) {
	dtm, dsm := flatGrids(60, 60, 10, 5) // DSM below DTM everywhere
	aoi := centeredAOI(60, 60)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	res, err := Plan(dtm, dsm, aoi, start, end, 100, false)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for _, h := range res.Heights.Data {
		if h < 0 {
			t.Fatalf("heights must be clamped to >= 0, got %v", h)
		}
	}
}

func TestPlanUsesOverrideBuffer(t *testing.T) {
	dtm, dsm := flatGrids(200, 200, 0, 0)
	aoi := centeredAOI(200, 200)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)

	res, err := Plan(dtm, dsm, aoi, start, end, 75, false)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if res.BufferMeters != 75 {
		t.Errorf("expected override buffer 75, got %v", res.BufferMeters)
	}
}
