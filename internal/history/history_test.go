package history

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stbrinkmann/shadowscan/internal/clip"
	"github.com/stbrinkmann/shadowscan/internal/pipeline"
	"github.com/stbrinkmann/shadowscan/internal/stats"
)

func testResult(runID string) *pipeline.Result {
	return &pipeline.Result{
		RunID:      runID,
		Timestamps: []time.Time{time.Now(), time.Now()},
		AOICells:   []pipeline.AOICell{{Row: 0, Col: 0}, {Row: 0, Col: 1}},
		Summary: &stats.Summary{
			AvgShadowFraction:      []float64{0.2, 0.4},
			TotalAvailableSolarHrs: 10,
		},
		ClipResult: &clip.Result{BufferMeters: 123},
	}
}

func TestRecordAndList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	ledger, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ledger.Close()

	if err := ledger.Record(testResult("run-a"), 5*time.Second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := ledger.Record(testResult("run-b"), 7*time.Second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := ledger.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].RunID != "run-b" {
		t.Errorf("most recent run = %q, want run-b", entries[0].RunID)
	}
	if entries[0].AOICellCount != 2 {
		t.Errorf("AOICellCount = %d, want 2", entries[0].AOICellCount)
	}
	if math.Abs(entries[0].AvgShadowFraction-0.3) > 1e-12 {
		t.Errorf("AvgShadowFraction = %v, want 0.3", entries[0].AvgShadowFraction)
	}
}

func TestListRespectsLimit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	ledger, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ledger.Close()

	for i := 0; i < 5; i++ {
		if err := ledger.Record(testResult(fmt.Sprintf("run-%d", i)), time.Second); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := ledger.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}
