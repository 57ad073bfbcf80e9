package domain

import (
	"fmt"
	"math"
)

// Klobuchar model limits.
const (
	klobucharMaxLatI     = 0.416   // Semicircles.
	klobucharMinPeriod   = 72000.0 // Seconds.
	klobucharNightDelay  = 5e-9    // Seconds.
	klobucharPeakTime    = 50400.0 // Local time of peak delay in seconds.
	klobucharMaxPhase    = 1.57
	klobucharGeomagPoleL = 1.617 // Semicircles.
)

// KlobucharDelay computes the broadcast-model ionospheric delay in seconds
// for a receiver at (lat, lon) in degrees observing a satellite at the given
// elevation and azimuth in degrees, at timeOfWeek GPS seconds.
//
//	psi  = 0.0137 / (E + 0.11) - 0.022
//	phiI = clamp(phiU + psi cos A, ±0.416)
//	lamI = lamU + psi sin A / cos(phiI π)
//	phiM = phiI + 0.064 cos((lamI - 1.617) π)
//	t    = 43200 lamI + tow  (mod 86400)
//	F    = 1 + 16 (0.53 - E)³
//	x    = 2π (t - 50400) / PER
//	T    = F · 5e-9                           if |x| > 1.57
//	T    = F · (5e-9 + AMP (1 - x²/2 + x⁴/24)) otherwise
//
// Angles marked E, phi, lam are in semicircles.
func KlobucharDelay(lat, lon, elevation, azimuth, timeOfWeek float64, coeffs IonosphericCoefficients) (float64, error) {
	if err := validateKlobuchar(lat, lon, elevation, azimuth, timeOfWeek, coeffs); err != nil {
		return 0, err
	}

	latSC := lat / 180.0
	lonSC := lon / 180.0
	elSC := elevation / 180.0
	azRad := Deg2Rad(azimuth)

	// Earth-centered angle.
	psi := 0.0137/(elSC+0.11) - 0.022

	// Pierce point latitude and longitude.
	latI := latSC + psi*math.Cos(azRad)
	latI = math.Max(-klobucharMaxLatI, math.Min(klobucharMaxLatI, latI))
	lonI := lonSC + psi*math.Sin(azRad)/math.Cos(latI*math.Pi)

	// Geomagnetic latitude.
	latM := latI + 0.064*math.Cos((lonI-klobucharGeomagPoleL)*math.Pi)

	// Local time, folded into [0, 86400).
	t := math.Mod(43200.0*lonI+timeOfWeek, SecondsPerDay)
	if t < 0 {
		t += SecondsPerDay
	}
	if t >= SecondsPerDay {
		t -= SecondsPerDay
	}

	slant := 1.0 + 16.0*math.Pow(0.53-elSC, 3)

	period := polynomial(coeffs.Beta, latM)
	if period < klobucharMinPeriod {
		period = klobucharMinPeriod
	}
	amplitude := polynomial(coeffs.Alpha, latM)
	if amplitude < 0 {
		amplitude = 0
	}

	x := 2.0 * math.Pi * (t - klobucharPeakTime) / period
	if math.Abs(x) > klobucharMaxPhase {
		return slant * klobucharNightDelay, nil
	}

	x2 := x * x
	return slant * (klobucharNightDelay + amplitude*(1-x2/2+x2*x2/24)), nil
}

// KlobucharDelayMeters is KlobucharDelay converted to slant range in meters.
func KlobucharDelayMeters(lat, lon, elevation, azimuth, timeOfWeek float64, coeffs IonosphericCoefficients) (float64, error) {
	seconds, err := KlobucharDelay(lat, lon, elevation, azimuth, timeOfWeek, coeffs)
	if err != nil {
		return 0, err
	}
	return seconds * SpeedOfLight, nil
}

// polynomial evaluates c0 + c1 v + c2 v² + c3 v³.
func polynomial(c [4]float64, v float64) float64 {
	return c[0] + v*(c[1]+v*(c[2]+v*c[3]))
}

func validateKlobuchar(lat, lon, elevation, azimuth, timeOfWeek float64, coeffs IonosphericCoefficients) error {
	inputs := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"latitude", lat, -90, 90},
		{"longitude", lon, -180, 180},
		{"elevation", elevation, 0, 90},
		{"azimuth", azimuth, -360, 360},
	}
	for _, in := range inputs {
		if math.IsNaN(in.value) || in.value < in.min || in.value > in.max {
			return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrValidation, in.name, in.value, in.min, in.max)
		}
	}

	if math.IsNaN(timeOfWeek) || timeOfWeek < 0 || timeOfWeek >= SecondsPerWeek {
		return fmt.Errorf("%w: time of week %v outside [0, %v)", ErrValidation, timeOfWeek, SecondsPerWeek)
	}

	for i := 0; i < 4; i++ {
		if !isFinite(coeffs.Alpha[i]) || !isFinite(coeffs.Beta[i]) {
			return fmt.Errorf("%w: non-finite ionospheric coefficient at index %d", ErrValidation, i)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
