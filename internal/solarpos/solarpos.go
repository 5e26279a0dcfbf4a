// Package solarpos computes the sun's apparent position for a given
// latitude, longitude, and instant, plus the daily sunrise/sunset/solar
// noon envelope derived from it (spec.md §4.1, C1).
package solarpos

import (
	"math"
	"sync"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// degToRad converts degrees to radians.
func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }

// radToDeg converts radians to degrees.
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// fixAngle normalizes an angle in degrees to [0, 360).
func fixAngle(a float64) float64 {
	a = math.Mod(a, 360.0)
	if a < 0 {
		a += 360.0
	}
	return a
}

// Position holds the sun's apparent position and the intermediate angles
// the ray-march kernel (C5) and timestamp generator (C2) both need.
type Position struct {
	AzimuthDeg    float64 // 0=N, clockwise
	ElevationDeg  float64 // above horizon
	DeclinationDeg float64
	EquationOfTimeMin float64
}

// Calculator computes sun positions for a fixed observer location, caching
// results at the angle precision configured for a run (spec.md §4.1: "a
// single-writer cache keyed on rounded (day-of-year, hour-of-day)").
// The cache is guarded by a mutex, so a Calculator may be shared across
// goroutines; the pipeline orchestrator owns it (spec.md §5).
type Calculator struct {
	Latitude, Longitude float64
	AnglePrecisionDeg   float64

	mu    sync.Mutex
	cache map[cacheKey]Position
}

type cacheKey struct {
	doy  int
	hour int
}

// NewCalculator builds a Calculator for a fixed observer location.
// anglePrecisionDeg of 0 disables rounding/caching.
func NewCalculator(lat, lon, anglePrecisionDeg float64) *Calculator {
	return &Calculator{
		Latitude:          lat,
		Longitude:         lon,
		AnglePrecisionDeg: anglePrecisionDeg,
		cache:             make(map[cacheKey]Position),
	}
}

// At returns the sun's position at t (which must be UTC), rounding azimuth
// and elevation to AnglePrecisionDeg and caching by (day-of-year,
// hour-of-day) the way spec.md §4.1 specifies.
func (c *Calculator) At(t time.Time) Position {
	t = t.UTC()
	key := cacheKey{doy: t.YearDay(), hour: t.Hour()}

	if c.AnglePrecisionDeg > 0 {
		c.mu.Lock()
		if p, ok := c.cache[key]; ok {
			c.mu.Unlock()
			return p
		}
		c.mu.Unlock()
	}

	p := c.calculate(t)
	if c.AnglePrecisionDeg > 0 {
		p.AzimuthDeg = roundTo(p.AzimuthDeg, c.AnglePrecisionDeg)
		p.ElevationDeg = roundTo(p.ElevationDeg, c.AnglePrecisionDeg)
		c.mu.Lock()
		c.cache[key] = p
		c.mu.Unlock()
	}
	return p
}

func roundTo(v, precision float64) float64 {
	inv := 1.0 / precision
	return math.Round(v*inv) / inv
}

// sunEclipticParams computes the Meeus-style low-precision solar ecliptic
// parameters (mean longitude, declination, equation of time) for the
// instant t. calculate, SolarNoon, and SunriseSunset all call this so C1
// uses one consistent solar model throughout instead of each deriving its
// own declination approximation.
func sunEclipticParams(t time.Time) (L0Deg, declRad, eqTimeMin float64) {
	jd := julian.TimeToJD(t)
	n := jd - 2451545.0

	L0 := fixAngle(280.460 + 0.9856474*n)
	g := degToRad(fixAngle(357.528 + 0.9856003*n))
	lambda := degToRad(L0 + 1.915*math.Sin(g) + 0.020*math.Sin(2*g))
	obliquity := degToRad(23.439 - 0.0000004*n)

	declRad = math.Asin(math.Sin(obliquity) * math.Sin(lambda))
	eqTimeMin = 4.0 * (L0 - 0.0057183 - radToDeg(lambda))
	return L0, declRad, eqTimeMin
}

// calculate computes the low-precision Meeus-style solar position: mean
// longitude, declination, equation of time, hour angle, then
// elevation/azimuth from the standard spherical formulas.
func (c *Calculator) calculate(t time.Time) Position {
	_, declRad, eqTimeMin := sunEclipticParams(t)
	decl := radToDeg(declRad)

	localMinutes := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0
	solarTimeHours := localMinutes/60.0 + eqTimeMin/60.0 + c.Longitude/15.0
	hourAngleDeg := 15.0 * (solarTimeHours - 12.0)
	hourAngleRad := degToRad(hourAngleDeg)

	latRad := degToRad(c.Latitude)
	elevRad := math.Asin(math.Sin(latRad)*math.Sin(declRad) +
		math.Cos(latRad)*math.Cos(declRad)*math.Cos(hourAngleRad))

	cosAz := (math.Sin(declRad) - math.Sin(latRad)*math.Sin(elevRad)) /
		(math.Cos(latRad) * math.Cos(elevRad))
	cosAz = math.Max(-1, math.Min(1, cosAz))
	azRad := math.Acos(cosAz)
	azDeg := radToDeg(azRad)
	if hourAngleDeg > 0 {
		azDeg = 360.0 - azDeg
	}

	return Position{
		AzimuthDeg:        fixAngle(azDeg),
		ElevationDeg:      radToDeg(elevRad),
		DeclinationDeg:    decl,
		EquationOfTimeMin: eqTimeMin,
	}
}

// SolarNoon returns the UTC instant of solar noon for the calendar date of
// t (taken as UTC), i.e. when the hour angle is zero.
func (c *Calculator) SolarNoon(t time.Time) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	_, _, eqTimeMin := sunEclipticParams(midnight.Add(12 * time.Hour))

	noonUTCMinutes := 720.0 - c.Longitude*4.0 - eqTimeMin
	return midnight.Add(time.Duration(noonUTCMinutes * float64(time.Minute)))
}

// standardZenithDeg is the standard sunrise/sunset horizon: -50 arcmin
// (-0.8333°), covering atmospheric refraction plus the solar disc's
// angular radius at the horizon (spec.md §4.1/§4.2; Non-goals excludes
// refraction correction beyond this standard offset, not the offset
// itself).
const standardZenithDeg = -0.8333

// SunriseSunset returns the UTC sunrise and sunset instants for the
// calendar date of t, using the standard -0.8333° horizon. ok is false for
// polar day (sun never sets) or polar night (sun never rises); the caller
// (C2) handles each case per spec.md §4.2.
func (c *Calculator) SunriseSunset(t time.Time) (sunrise, sunset time.Time, ok bool) {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	_, declRad, _ := sunEclipticParams(midnight.Add(12 * time.Hour))

	latRad := degToRad(c.Latitude)
	cosH := (math.Sin(degToRad(standardZenithDeg)) - math.Sin(latRad)*math.Sin(declRad)) /
		(math.Cos(latRad) * math.Cos(declRad))
	if cosH < -1.0 || cosH > 1.0 {
		return time.Time{}, time.Time{}, false
	}

	hourAngleHours := radToDeg(math.Acos(cosH)) / 15.0
	noon := c.SolarNoon(t)
	halfDay := time.Duration(hourAngleHours * float64(time.Hour))
	return noon.Add(-halfDay), noon.Add(halfDay), true
}

// SolarHours returns the number of daylight hours for the calendar date of
// t, or 24/0 for polar day/night respectively.
func (c *Calculator) SolarHours(t time.Time) float64 {
	sunrise, sunset, ok := c.SunriseSunset(t)
	if !ok {
		tUTC := t.UTC()
		midnight := time.Date(tUTC.Year(), tUTC.Month(), tUTC.Day(), 0, 0, 0, 0, time.UTC)
		_, declRad, _ := sunEclipticParams(midnight.Add(12 * time.Hour))
		latRad := degToRad(c.Latitude)
		cosH := (math.Sin(degToRad(standardZenithDeg)) - math.Sin(latRad)*math.Sin(declRad)) /
			(math.Cos(latRad) * math.Cos(declRad))
		if cosH < -1.0 {
			return 24.0
		}
		return 0.0
	}
	return sunset.Sub(sunrise).Hours()
}
