// Package timeline generates the daylight-clipped sequence of timestamps a
// run evaluates shadows at (spec.md §4.2, C2).
//
// This replaces the fixed calendar-wide range the original draft generated
// (spec.md §9 calls that superseded): each calendar day is walked
// independently and stepped timestamps outside that day's sunrise/sunset
// window are dropped, so a run never wastes a timestamp on full darkness.
package timeline

import (
	"time"

	"github.com/stbrinkmann/shadowscan/internal/solarpos"
)

// Generate returns the UTC timestamps to evaluate between start and end
// (inclusive calendar dates), stepped by hourInterval within each day's
// daylight window.
//
// Polar day (no sunset) emits the full stepped range across the day.
// Polar night (no sunrise) skips the day entirely.
func Generate(start, end time.Time, hourInterval float64, calc *solarpos.Calculator) []time.Time {
	if hourInterval <= 0 {
		hourInterval = 1
	}
	step := time.Duration(hourInterval * float64(time.Hour))

	start = start.UTC()
	end = end.UTC()

	var out []time.Time
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	for !day.After(lastDay) {
		sunrise, sunset, ok := calc.SunriseSunset(day)
		if !ok {
			if calc.SolarHours(day) == 24.0 {
				// Polar day: no horizon crossing, emit the full stepped day.
				for ts := day; ts.Before(day.AddDate(0, 0, 1)); ts = ts.Add(step) {
					if withinRange(ts, start, end) {
						out = append(out, ts)
					}
				}
			}
			// Polar night: nothing to emit for this day.
			day = day.AddDate(0, 0, 1)
			continue
		}

		for ts := sunrise; !ts.After(sunset); ts = ts.Add(step) {
			if withinRange(ts, start, end) {
				out = append(out, ts)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func withinRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}
