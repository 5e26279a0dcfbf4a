// Package stats implements the statistics reducer (spec.md §4.7, C7): it
// folds the (T, N_aoi, 1) shadow stack into per-cell summary layers and a
// monthly/seasonal rollup.
package stats

import (
	"time"

	"github.com/stbrinkmann/shadowscan/internal/solarpos"
	"gonum.org/v1/gonum/floats"
)

// Summary holds the per-cell summary layers (spec.md §3, shape (1, N_aoi, 1)
// each, stored here as parallel float64 slices indexed by AOI cell).
type Summary struct {
	TotalShadowHours       []float64
	AvgShadowFraction      []float64
	MaxConsecutiveShadow   []float64
	MorningShadowHours     []float64
	NoonShadowHours        []float64
	AfternoonShadowHours   []float64
	SolarEfficiency        []float64
	AvgDailySolarHours     float64
	TotalAvailableSolarHrs float64
}

// MonthKey identifies a (year, month) bucket for the monthly rollup.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthlyStats is the per-(year, month) rollup for one AOI cell set.
type MonthlyStats struct {
	Key                   MonthKey
	TotalShadowHours      []float64
	AvgShadowPercentage   []float64
	MaxConsecutiveShadow  []float64
	SolarEfficiencyPct    []float64
	DaysInAnalysis        int
}

// Season identifies one of the four meteorological seasons.
type Season int

const (
	Spring Season = iota
	Summer
	Fall
	Winter
)

func (s Season) String() string {
	switch s {
	case Spring:
		return "spring"
	case Summer:
		return "summer"
	case Fall:
		return "fall"
	default:
		return "winter"
	}
}

func seasonOf(m time.Month) Season {
	switch m {
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	case time.September, time.October, time.November:
		return Fall
	default:
		return Winter
	}
}

// SeasonalStats is the seasonal rollup, aggregated from MonthlyStats.
type SeasonalStats struct {
	Season               Season
	TotalShadowHours      []float64
	AvgShadowPercentage   []float64
	MaxConsecutiveShadow  []float64
	SolarEfficiencyPct    []float64
	DaysInAnalysis        int
}

// Reduce computes the overall Summary from the shadow stack. stack[t] is
// the length-nAOI shadow-fraction slice for timestamp t. hourInterval is
// the sampling step Δ in hours. calc supplies solar_hours per calendar
// date.
func Reduce(stack [][]float32, timestamps []time.Time, hourInterval float64, nAOI int, calc *solarpos.Calculator) *Summary {
	s := &Summary{
		TotalShadowHours:     make([]float64, nAOI),
		AvgShadowFraction:    make([]float64, nAOI),
		MaxConsecutiveShadow: make([]float64, nAOI),
		MorningShadowHours:   make([]float64, nAOI),
		NoonShadowHours:      make([]float64, nAOI),
		AfternoonShadowHours: make([]float64, nAOI),
		SolarEfficiency:      make([]float64, nAOI),
	}
	if len(timestamps) == 0 {
		return s
	}

	noonByDate := make(map[time.Time]time.Time)
	solarHoursByDate := make(map[time.Time]float64)
	dateOf := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	for _, t := range timestamps {
		d := dateOf(t)
		if _, ok := noonByDate[d]; !ok {
			noonByDate[d] = calc.SolarNoon(d)
			solarHoursByDate[d] = calc.SolarHours(d)
		}
	}

	consec := make([]float64, nAOI)

	for ti, t := range timestamps {
		noon := noonByDate[dateOf(t)]
		partition := partitionOf(t, noon)
		row := stack[ti]
		for k := 0; k < nAOI; k++ {
			v := float64(row[k]) * hourInterval
			s.TotalShadowHours[k] += v
			switch partition {
			case morning:
				s.MorningShadowHours[k] += v
			case noonPeriod:
				s.NoonShadowHours[k] += v
			case afternoon:
				s.AfternoonShadowHours[k] += v
			}
			if row[k] > 0.5 {
				consec[k] += hourInterval
				if consec[k] > s.MaxConsecutiveShadow[k] {
					s.MaxConsecutiveShadow[k] = consec[k]
				}
			} else {
				consec[k] = 0
			}
		}
	}

	for _, h := range solarHoursByDate {
		s.TotalAvailableSolarHrs += h
	}
	s.AvgDailySolarHours = s.TotalAvailableSolarHrs / float64(len(solarHoursByDate))

	totalSamples := float64(len(timestamps)) * hourInterval
	for k := 0; k < nAOI; k++ {
		if totalSamples > 0 {
			s.AvgShadowFraction[k] = s.TotalShadowHours[k] / totalSamples
		}
		if s.TotalAvailableSolarHrs > 0 {
			eff := (s.TotalAvailableSolarHrs - s.TotalShadowHours[k]) / s.TotalAvailableSolarHrs
			if eff < 0 {
				eff = 0
			}
			s.SolarEfficiency[k] = eff
		}
	}

	return s
}

type dayPartition int

const (
	morning dayPartition = iota
	noonPeriod
	afternoon
)

func partitionOf(t, noon time.Time) dayPartition {
	lower := noon.Add(-2 * time.Hour)
	upper := noon.Add(2 * time.Hour)
	switch {
	case t.Before(lower):
		return morning
	case t.After(upper):
		return afternoon
	default:
		return noonPeriod
	}
}

// Monthly groups timestamp indices by (year, month) and computes the
// rollup for each group. The monthly avg_shadow_percentage divides by
// sample count, not available solar hours — a deliberate reporting
// convention carried over from prior exports (spec.md §9), not re-derived
// from totals the way the overall Summary's AvgShadowFraction is.
func Monthly(stack [][]float32, timestamps []time.Time, hourInterval float64, nAOI int) []*MonthlyStats {
	groups := make(map[MonthKey][]int)
	var order []MonthKey
	for i, t := range timestamps {
		key := MonthKey{Year: t.Year(), Month: t.Month()}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	out := make([]*MonthlyStats, 0, len(order))
	for _, key := range order {
		idxs := groups[key]
		ms := &MonthlyStats{
			Key:                  key,
			TotalShadowHours:     make([]float64, nAOI),
			AvgShadowPercentage:  make([]float64, nAOI),
			MaxConsecutiveShadow: make([]float64, nAOI),
			SolarEfficiencyPct:   make([]float64, nAOI),
		}
		dates := make(map[time.Time]bool)
		consec := make([]float64, nAOI)
		for _, ti := range idxs {
			dates[time.Date(timestamps[ti].Year(), timestamps[ti].Month(), timestamps[ti].Day(), 0, 0, 0, 0, time.UTC)] = true
			row := stack[ti]
			for k := 0; k < nAOI; k++ {
				v := float64(row[k]) * hourInterval
				ms.TotalShadowHours[k] += v
				if row[k] > 0.5 {
					consec[k] += hourInterval
					if consec[k] > ms.MaxConsecutiveShadow[k] {
						ms.MaxConsecutiveShadow[k] = consec[k]
					}
				} else {
					consec[k] = 0
				}
			}
		}
		ms.DaysInAnalysis = len(dates)
		sampleHours := float64(len(idxs)) * hourInterval
		for k := 0; k < nAOI; k++ {
			if sampleHours > 0 {
				ms.AvgShadowPercentage[k] = ms.TotalShadowHours[k] / sampleHours
			}
			eff := 1 - ms.AvgShadowPercentage[k]
			if eff < 0 {
				eff = 0
			}
			ms.SolarEfficiencyPct[k] = eff
		}
		out = append(out, ms)
	}
	return out
}

// Seasonal aggregates monthly rollups into the four meteorological
// seasons: totals and day counts are summed, percentage layers (avg
// shadow, solar efficiency) are averaged across the season's months, and
// max-consecutive is the per-cell max across months (spec.md §4.7).
func Seasonal(monthly []*MonthlyStats, nAOI int) []*SeasonalStats {
	bySeason := make(map[Season][]*MonthlyStats)
	var order []Season
	for _, m := range monthly {
		s := seasonOf(m.Key.Month)
		if _, ok := bySeason[s]; !ok {
			order = append(order, s)
		}
		bySeason[s] = append(bySeason[s], m)
	}

	out := make([]*SeasonalStats, 0, len(order))
	for _, season := range order {
		months := bySeason[season]
		ss := &SeasonalStats{
			Season:               season,
			TotalShadowHours:     make([]float64, nAOI),
			AvgShadowPercentage:  make([]float64, nAOI),
			MaxConsecutiveShadow: make([]float64, nAOI),
			SolarEfficiencyPct:   make([]float64, nAOI),
		}
		for _, m := range months {
			floats.Add(ss.TotalShadowHours, m.TotalShadowHours)
			floats.Add(ss.AvgShadowPercentage, m.AvgShadowPercentage)
			floats.Add(ss.SolarEfficiencyPct, m.SolarEfficiencyPct)
			ss.DaysInAnalysis += m.DaysInAnalysis
			for k := 0; k < nAOI; k++ {
				if m.MaxConsecutiveShadow[k] > ss.MaxConsecutiveShadow[k] {
					ss.MaxConsecutiveShadow[k] = m.MaxConsecutiveShadow[k]
				}
			}
		}
		n := float64(len(months))
		if n > 0 {
			floats.Scale(1/n, ss.AvgShadowPercentage)
			floats.Scale(1/n, ss.SolarEfficiencyPct)
		}
		out = append(out, ss)
	}
	return out
}
