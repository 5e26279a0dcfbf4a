package timeline

import (
	"testing"
	"time"

	"github.com/stbrinkmann/shadowscan/internal/solarpos"
)

func TestGenerateClipsToDaylight(t *testing.T) {
	calc := solarpos.NewCalculator(48.1, 11.6, 0)
	start := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 10, 23, 59, 0, 0, time.UTC)

	ts := Generate(start, end, 1, calc)
	if len(ts) == 0 {
		t.Fatal("expected at least one daylight timestamp")
	}
	sunrise, sunset, ok := calc.SunriseSunset(start)
	if !ok {
		t.Fatal("expected sunrise/sunset at mid-latitude in April")
	}
	for _, stamp := range ts {
		if stamp.Before(sunrise) || stamp.After(sunset) {
			t.Errorf("timestamp %v outside daylight window [%v, %v]", stamp, sunrise, sunset)
		}
	}
}

func TestGenerateMultiDayIsSorted(t *testing.T) {
	calc := solarpos.NewCalculator(40, -3, 0)
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 3, 23, 59, 0, 0, time.UTC)

	ts := Generate(start, end, 2, calc)
	for i := 1; i < len(ts); i++ {
		if !ts[i].After(ts[i-1]) {
			t.Errorf("timestamps must be strictly increasing, got %v then %v", ts[i-1], ts[i])
		}
	}
}

func TestGeneratePolarNightSkipsDay(t *testing.T) {
	calc := solarpos.NewCalculator(78.0, 15.0, 0)
	day := time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC)

	ts := Generate(day, day.Add(23*time.Hour), 1, calc)
	if len(ts) != 0 {
		t.Errorf("expected no timestamps during polar night, got %d", len(ts))
	}
}

func TestGeneratePolarDayEmitsFullRange(t *testing.T) {
	calc := solarpos.NewCalculator(78.0, 15.0, 0)
	day := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)

	ts := Generate(day, day.Add(23*time.Hour), 1, calc)
	if len(ts) < 20 {
		t.Errorf("expected a near-full day of timestamps during polar day, got %d", len(ts))
	}
}
