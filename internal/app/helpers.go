package app

import (
	"net"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/stbrinkmann/shadowscan/internal/geo"
	"github.com/stbrinkmann/shadowscan/internal/pipeline"
	"github.com/stbrinkmann/shadowscan/internal/shaderr"
)

// parseDateRange parses the YAML-provided start/end dates (spec.md §3,
// "YYYY-MM-DD" calendar dates in UTC: start at 00:00 of the start date,
// end at 23:59 of the end date).
func parseDateRange(startStr, endStr string) (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, shaderr.Configf("app", "invalid start_date %q: %v", startStr, err)
	}
	end, err = time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, shaderr.Configf("app", "invalid end_date %q: %v", endStr, err)
	}
	end = end.Add(23*time.Hour + 59*time.Minute)
	if end.Before(start) {
		return time.Time{}, time.Time{}, shaderr.Configf("app", "end_date %q is before start_date %q", endStr, startStr)
	}
	return start, end, nil
}

// ringToPolygon builds a geo.Polygon from an inline YAML ring, closing it
// if the caller didn't repeat the first vertex.
func ringToPolygon(points [][2]float64) geo.Polygon {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, orb.Point{p[0], p[1]})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return geo.NewPolygon(ring)
}

// assembleBands lays out the output raster's band stack exactly as
// spec.md §6 describes it: 9 summary bands, then one per-timestamp shadow
// band, each with its own human-readable description. The output raster
// is column-major over AOI cells (one row per cell, a single column) since
// AOI cells aren't necessarily a contiguous rectangular window.
func assembleBands(result *pipeline.Result) (bands [][]float32, descriptions []string) {
	n := len(result.AOICells)
	s := result.Summary

	bands = [][]float32{
		toFloat32(s.TotalShadowHours, n),
		toFloat32(s.AvgShadowFraction, n),
		toFloat32(s.MaxConsecutiveShadow, n),
		toFloat32(s.MorningShadowHours, n),
		toFloat32(s.NoonShadowHours, n),
		toFloat32(s.AfternoonShadowHours, n),
		toFloat32(s.SolarEfficiency, n),
		constBand(s.AvgDailySolarHours, n),
		constBand(s.TotalAvailableSolarHrs, n),
	}
	descriptions = []string{
		"Total_Shadow_Hours",
		"Average_Shadow_Fraction_(0-1)",
		"Max_Consecutive_Shadow_Hours",
		"Morning_Shadow_Hours",
		"Noon_Shadow_Hours",
		"Afternoon_Shadow_Hours",
		"Solar_Efficiency",
		"Average_Daily_Solar_Hours",
		"Total_Available_Solar_Hours",
	}

	for ti, t := range result.Timestamps {
		bands = append(bands, result.Stack[ti])
		descriptions = append(descriptions, t.UTC().Format("2006-01-02_15:04")+"_UTC")
	}
	return bands, descriptions
}

func toFloat32(v []float64, n int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n && i < len(v); i++ {
		out[i] = float32(v[i])
	}
	return out
}

func constBand(v float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(v)
	}
	return out
}

// splitHostPort parses a "host:port" address, defaulting host to all
// interfaces when omitted (e.g. ":8080").
func splitHostPort(addr string) (host string, port int, err error) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	portNum, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, err
	}
	return h, portNum, nil
}
