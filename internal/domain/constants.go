package domain

import "math"

// Physical and time-system constants.
const (
	SpeedOfLight = 299792458.0 // m/s.
	FreqL1       = 1575.42e6   // GPS L1 carrier frequency in Hz.
	KIono        = 40.308193   // Ionospheric refraction constant in m³/s².
	TECUnit      = 1e16        // Electrons per m² in one TECU.

	GPSEpochJD     = 2444244.5 // Julian Date of 1980-01-06T00:00:00.
	SecondsPerDay  = 86400.0
	SecondsPerWeek = 604800.0

	// NoTECValue marks an unavailable grid value in IONEX maps.
	NoTECValue = 9999
)

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
