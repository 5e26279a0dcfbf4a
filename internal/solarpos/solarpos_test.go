package solarpos

import (
	"math"
	"testing"
	"time"
)

func TestCalculatorAtNoonElevationIsMaxForDay(t *testing.T) {
	c := NewCalculator(52.5, 13.4, 0)
	date := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	noon := c.SolarNoon(date)

	noonPos := c.At(noon)
	earlier := c.At(noon.Add(-3 * time.Hour))
	later := c.At(noon.Add(3 * time.Hour))

	if noonPos.ElevationDeg < earlier.ElevationDeg || noonPos.ElevationDeg < later.ElevationDeg {
		t.Errorf("solar noon elevation %.3f should be >= surrounding hours (%.3f, %.3f)",
			noonPos.ElevationDeg, earlier.ElevationDeg, later.ElevationDeg)
	}
}

func TestCalculatorCachingIsIdempotent(t *testing.T) {
	c := NewCalculator(40, -3, 1.0)
	date := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	first := c.At(date)
	second := c.At(date.Add(5 * time.Minute)) // same hour bucket

	if first != second {
		t.Errorf("positions within the same cached hour bucket should be identical, got %+v vs %+v", first, second)
	}
}

func TestSunriseSunsetSymmetricAroundNoon(t *testing.T) {
	c := NewCalculator(48.1, 11.6, 0)
	date := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	sunrise, sunset, ok := c.SunriseSunset(date)
	if !ok {
		t.Fatal("expected sunrise/sunset at mid-latitude in April")
	}
	noon := c.SolarNoon(date)

	beforeNoon := noon.Sub(sunrise)
	afterNoon := sunset.Sub(noon)
	if math.Abs(beforeNoon.Minutes()-afterNoon.Minutes()) > 1.0 {
		t.Errorf("sunrise/sunset should be symmetric around solar noon, got %.1fmin before vs %.1fmin after",
			beforeNoon.Minutes(), afterNoon.Minutes())
	}
}

func TestPolarDayAndNight(t *testing.T) {
	arctic := NewCalculator(78.0, 15.0, 0)
	summer := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	winter := time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC)

	if _, _, ok := arctic.SunriseSunset(summer); ok {
		t.Error("expected polar day (no sunrise/sunset) at 78N on the summer solstice")
	}
	if hrs := arctic.SolarHours(summer); hrs != 24.0 {
		t.Errorf("expected 24 solar hours on polar day, got %v", hrs)
	}

	if _, _, ok := arctic.SunriseSunset(winter); ok {
		t.Error("expected polar night (no sunrise/sunset) at 78N on the winter solstice")
	}
	if hrs := arctic.SolarHours(winter); hrs != 0.0 {
		t.Errorf("expected 0 solar hours on polar night, got %v", hrs)
	}
}

func TestSunriseUsesStandardZenithNotGeometricHorizon(t *testing.T) {
	c := NewCalculator(48.1, 11.6, 0)
	date := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	sunrise, sunset, ok := c.SunriseSunset(date)
	if !ok {
		t.Fatal("expected sunrise/sunset at mid-latitude in April")
	}

	// The sun's elevation at the reported sunrise/sunset instants should sit
	// at the standard -0.8333deg horizon (refraction + solar-disc radius),
	// not at the 0deg geometric horizon a bare -tanLat*tanDecl identity
	// would produce.
	for _, instant := range []time.Time{sunrise, sunset} {
		elev := c.At(instant).ElevationDeg
		if math.Abs(elev-standardZenithDeg) > 0.1 {
			t.Errorf("elevation at reported sunrise/sunset = %.4f, want close to standard zenith %.4f", elev, standardZenithDeg)
		}
		if math.Abs(elev) < 0.1 {
			t.Errorf("elevation at reported sunrise/sunset = %.4f, should not sit at the geometric 0deg horizon", elev)
		}
	}
}

func TestNightElevationIsNegative(t *testing.T) {
	c := NewCalculator(52.5, 13.4, 0)
	midnight := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	pos := c.At(midnight)
	if pos.ElevationDeg > 0 {
		t.Errorf("expected negative elevation at local midnight in January, got %v", pos.ElevationDeg)
	}
}
