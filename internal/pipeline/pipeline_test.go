package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stbrinkmann/shadowscan/internal/geo"
	"github.com/stbrinkmann/shadowscan/internal/shadowkernel"
	"github.com/stbrinkmann/shadowscan/internal/shaderr"
	"github.com/stbrinkmann/shadowscan/internal/solarpos"
)

type recordingSink struct {
	events []Progress
}

func (r *recordingSink) Emit(p Progress) { r.events = append(r.events, p) }

func flatGrids(rows, cols int) (dtm, dsm *geo.Grid) {
	transform := geo.NewTransform([6]float64{0, 1, 0, float64(rows), 0, -1})
	dtm = geo.NewGrid(rows, cols, transform, "local")
	dsm = geo.NewGrid(rows, cols, transform, "local")
	for i := range dtm.Data {
		dtm.Data[i] = 0
		dsm.Data[i] = 0
	}
	return dtm, dsm
}

func squareAOI(x0, y0, x1, y1 float64) geo.Polygon {
	ring := orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
	return geo.NewPolygon(ring)
}

func TestRunFlatTerrainOneDayHourly(t *testing.T) {
	dtm, dsm := flatGrids(20, 20)
	aoi := squareAOI(5, 5, 10, 10)

	start := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 21, 23, 59, 0, 0, time.UTC)

	sink := &recordingSink{}
	result, err := Run(context.Background(), dtm, dsm, aoi, Options{
		StartDate:      start,
		EndDate:        end,
		HourInterval:   1,
		AnglePrecision: 0.5,
		Quality:        shadowkernel.QualityFast,
		CPUCores:       2,
		Geographic:     false,
	}, sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Timestamps) == 0 {
		t.Fatal("expected at least one daylight timestamp")
	}
	if len(result.AOICells) == 0 {
		t.Fatal("expected at least one AOI cell")
	}
	if len(result.Stack) != len(result.Timestamps) {
		t.Fatalf("stack has %d rows, want %d", len(result.Stack), len(result.Timestamps))
	}
	for ti, row := range result.Stack {
		if len(row) != len(result.AOICells) {
			t.Fatalf("stack row %d has %d cells, want %d", ti, len(row), len(result.AOICells))
		}
		for _, v := range row {
			if v < 0 || v > 1 {
				t.Errorf("timestamp %d: shadow fraction %v out of [0,1]", ti, v)
			}
		}
	}
	if result.Summary == nil {
		t.Fatal("expected a non-nil summary")
	}
	if len(sink.events) != len(result.Timestamps) {
		t.Errorf("got %d progress events, want %d", len(sink.events), len(result.Timestamps))
	}
	last := sink.events[len(sink.events)-1]
	if last.ProgressPct != 100 {
		t.Errorf("final progress = %v, want 100", last.ProgressPct)
	}

	// Flat terrain: nothing can cast a shadow into the AOI, so every cell is
	// fully sunlit while the sun is above the horizon. Timestamps between the
	// -0.8333 deg sunrise horizon and 0 deg elevation are marked fully shadowed.
	calc := solarpos.NewCalculator(aoi.Centroid.Y(), aoi.Centroid.X(), 0.5)
	for ti, row := range result.Stack {
		want := float32(1)
		if calc.At(result.Timestamps[ti]).ElevationDeg > 0 {
			want = 0
		}
		for k, v := range row {
			if v != want {
				t.Errorf("timestamp %d cell %d: flat terrain produced shadow fraction %v, want %v", ti, k, v, want)
			}
		}
	}
}

func TestRunPolarNightZeroSolarHours(t *testing.T) {
	// A flat 10x10 geographic grid spanning lon 15.00-15.01, lat 80.00-80.01.
	transform := geo.NewTransform([6]float64{15, 0.001, 0, 80.01, 0, -0.001})
	dtm := geo.NewGrid(10, 10, transform, "EPSG:4326")
	dsm := geo.NewGrid(10, 10, transform, "EPSG:4326")
	aoi := squareAOI(15.002, 80.002, 15.005, 80.005)

	// Well above the Arctic Circle in midwinter: no daylight at all.
	start := time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 21, 23, 0, 0, 0, time.UTC)

	_, err := Run(context.Background(), dtm, dsm, aoi, Options{
		StartDate:      start,
		EndDate:        end,
		HourInterval:   1,
		AnglePrecision: 0.5,
		Quality:        shadowkernel.QualityFast,
		CPUCores:       1,
		Geographic:     true,
	}, nil)

	// Zero solar hours leaves the timestamp generator with an empty daylight
	// sequence, which Run reports as a Config error.
	var se *shaderr.Error
	if !errors.As(err, &se) || se.Kind != shaderr.Config {
		t.Fatalf("Run error = %v, want a Config error for a zero-daylight window", err)
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	dtm, dsm := flatGrids(20, 20)
	aoi := squareAOI(5, 5, 10, 10)

	start := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 25, 23, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, dtm, dsm, aoi, Options{
		StartDate:      start,
		EndDate:        end,
		HourInterval:   1,
		AnglePrecision: 0.5,
		Quality:        shadowkernel.QualityFast,
		CPUCores:       2,
	}, nil)
	if err == nil {
		t.Fatal("expected a cancellation error for an already-cancelled context")
	}
}

func TestRunRejectsAOIOutsideRaster(t *testing.T) {
	dtm, dsm := flatGrids(10, 10)
	aoi := squareAOI(1000, 1000, 1010, 1010)

	start := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 21, 23, 0, 0, 0, time.UTC)

	_, err := Run(context.Background(), dtm, dsm, aoi, Options{
		StartDate:    start,
		EndDate:      end,
		HourInterval: 1,
		Quality:      shadowkernel.QualityFast,
		CPUCores:     1,
	}, nil)
	if err == nil {
		t.Fatal("expected an error for an AOI entirely outside the raster")
	}
}
