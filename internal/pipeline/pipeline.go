// Package pipeline implements the orchestrator (spec.md §4.8, C8): it
// drives C1-C7 in sequence, fans candidate cells out across a worker pool
// per timestamp, and assembles the final AOI-indexed shadow stack and
// summaries.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/stbrinkmann/shadowscan/internal/clip"
	"github.com/stbrinkmann/shadowscan/internal/geo"
	"github.com/stbrinkmann/shadowscan/internal/log"
	"github.com/stbrinkmann/shadowscan/internal/selector"
	"github.com/stbrinkmann/shadowscan/internal/shaderr"
	"github.com/stbrinkmann/shadowscan/internal/shadowkernel"
	"github.com/stbrinkmann/shadowscan/internal/solarpos"
	"github.com/stbrinkmann/shadowscan/internal/stats"
	"github.com/stbrinkmann/shadowscan/internal/timeline"
)

// AOICell maps an index k in the AOI-indexed shadow stack back to a pixel
// coordinate in the clipped working window (spec.md §3).
type AOICell struct {
	Row, Col int
}

// Progress is one progress event, emitted between timestamps (spec.md §6).
type Progress struct {
	RunID             string
	ProgressPct       float64
	CurrentStep       string
	TotalSteps        int
	CurrentStepNumber int
}

// ProgressSink receives progress events. The orchestrator is the only
// writer (spec.md §5); implementations must not block for long.
type ProgressSink interface {
	Emit(Progress)
}

// Options configures one run.
type Options struct {
	RunID              string
	StartDate, EndDate time.Time
	HourInterval       float64
	BufferMeters       float64 // 0 = auto-derive (C3)
	AnglePrecision     float64
	Quality            shadowkernel.Quality
	CPUCores           int
	Geographic         bool // true when the raster CRS is geographic (degrees)
}

// Result is everything the orchestrator returns: the AOI-indexed shadow
// stack, timestamps, summaries, and the cell-index map (spec.md §4.8).
type Result struct {
	RunID      string
	Stack      [][]float32 // [t][k]
	Timestamps []time.Time
	AOICells   []AOICell
	Summary    *stats.Summary
	Monthly    []*stats.MonthlyStats
	Seasonal   []*stats.SeasonalStats
	ClipResult *clip.Result
}

// Run executes the full pipeline: clip -> timeline -> per-timestamp
// (solar position -> selector -> parallel ray-march -> edge refinement) ->
// statistics reduction.
func Run(ctx context.Context, dtm, dsm *geo.Grid, aoi geo.Polygon, opts Options, sink ProgressSink) (*Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.CPUCores <= 0 {
		opts.CPUCores = 4
	}

	clipResult, err := clip.Plan(dtm, dsm, aoi, opts.StartDate, opts.EndDate, opts.BufferMeters, opts.Geographic)
	if err != nil {
		return nil, err
	}

	resolution := clipResult.Heights.Transform.ResolutionMeters(opts.Geographic, aoi.Centroid.Y())
	calc := solarpos.NewCalculator(aoi.Centroid.Y(), aoi.Centroid.X(), opts.AnglePrecision)

	timestamps := timeline.Generate(opts.StartDate, opts.EndDate, opts.HourInterval, calc)
	if len(timestamps) == 0 {
		return nil, shaderr.Configf("pipeline", "timestamp generator produced an empty daylight sequence for this date range")
	}

	aoiCells, aoiMask := buildAOIIndex(clipResult.Heights, aoi)
	if len(aoiCells) == 0 {
		return nil, shaderr.Configf("pipeline", "no clipped-window cells fall inside the AOI polygon")
	}

	bounds := selector.Bounds{RMin: clipResult.Heights.Rows, RMax: 0, CMin: clipResult.Heights.Cols, CMax: 0}
	for _, c := range aoiCells {
		if c.Row < bounds.RMin {
			bounds.RMin = c.Row
		}
		if c.Row > bounds.RMax {
			bounds.RMax = c.Row
		}
		if c.Col < bounds.CMin {
			bounds.CMin = c.Col
		}
		if c.Col > bounds.CMax {
			bounds.CMax = c.Col
		}
	}
	var centroidRow, centroidCol float64
	{
		inv := clipResult.Heights.Transform.Invert()
		c, r := inv.WorldToPixel(aoi.Centroid.X(), aoi.Centroid.Y())
		centroidRow, centroidCol = r, c
	}
	centroid := selector.AOICentroid{Row: centroidRow, Col: centroidCol}

	pool, err := ants.NewPool(opts.CPUCores)
	if err != nil {
		return nil, shaderr.New("pipeline", shaderr.Config, err)
	}
	defer pool.Release()

	stack := make([][]float32, len(timestamps))
	rows, cols := clipResult.Heights.Rows, clipResult.Heights.Cols

	for ti, t := range timestamps {
		if ctx.Err() != nil {
			return nil, shaderr.New("pipeline", shaderr.Cancelled, ctx.Err())
		}

		pos := calc.At(t)
		row := make([]float32, len(aoiCells))

		if pos.ElevationDeg <= 0 {
			for k := range row {
				row[k] = 1.0
			}
			stack[ti] = row
			emit(sink, opts.RunID, ti, len(timestamps), t)
			continue
		}

		dense := make([]float32, rows*cols)
		candidates := selector.Candidates(pos.AzimuthDeg, pos.ElevationDeg, clipResult.Heights.Data, rows, cols, aoiMask, bounds, centroid, clipResult.BufferMeters, resolution)

		dir := shadowkernel.NewDirection(pos.AzimuthDeg, pos.ElevationDeg)

		var wg sync.WaitGroup
		for _, cell := range candidates {
			cell := cell
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				dense[cell.Row*cols+cell.Col] = shadowkernel.CellShadow(clipResult.Heights, dir, cell.Row, cell.Col, clipResult.BufferMeters, resolution)
			})
			if submitErr != nil {
				wg.Done()
				dense[cell.Row*cols+cell.Col] = shadowkernel.CellShadow(clipResult.Heights, dir, cell.Row, cell.Col, clipResult.BufferMeters, resolution)
			}
		}
		wg.Wait()

		if opts.Quality != shadowkernel.QualityFast {
			shadowkernel.RefineEdges(clipResult.Heights, dir, dense, rows, cols, opts.Quality, clipResult.BufferMeters, resolution)
		}

		for k, cell := range aoiCells {
			row[k] = dense[cell.Row*cols+cell.Col]
		}
		stack[ti] = row

		emit(sink, opts.RunID, ti, len(timestamps), t)
	}

	summary := stats.Reduce(stack, timestamps, opts.HourInterval, len(aoiCells), calc)
	monthly := stats.Monthly(stack, timestamps, opts.HourInterval, len(aoiCells))
	seasonal := stats.Seasonal(monthly, len(aoiCells))

	return &Result{
		RunID:      opts.RunID,
		Stack:      stack,
		Timestamps: timestamps,
		AOICells:   aoiCells,
		Summary:    summary,
		Monthly:    monthly,
		Seasonal:   seasonal,
		ClipResult: clipResult,
	}, nil
}

func emit(sink ProgressSink, runID string, idx, total int, t time.Time) {
	if sink == nil {
		return
	}
	sink.Emit(Progress{
		RunID:             runID,
		ProgressPct:       100 * float64(idx+1) / float64(total),
		CurrentStep:       t.Format(time.RFC3339),
		TotalSteps:        total,
		CurrentStepNumber: idx + 1,
	})
	log.Debugf("pipeline: completed timestamp %d/%d (%s)", idx+1, total, t.Format(time.RFC3339))
}

// buildAOIIndex tests every clipped-window cell center against the AOI
// polygon with a standard point-in-polygon test, returning the ordered
// list of (row, col) pairs and a fast lookup mask (spec.md §4.8).
func buildAOIIndex(grid *geo.Grid, aoi geo.Polygon) ([]AOICell, func(row, col int) bool) {
	inside := make(map[AOICell]bool)
	var cells []AOICell
	for r := 0; r < grid.Rows; r++ {
		for c := 0; c < grid.Cols; c++ {
			x, y := grid.Transform.PixelToWorld(float64(c)+0.5, float64(r)+0.5)
			if aoi.Contains(x, y) {
				cell := AOICell{Row: r, Col: c}
				cells = append(cells, cell)
				inside[cell] = true
			}
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	return cells, func(row, col int) bool { return inside[AOICell{Row: row, Col: col}] }
}
