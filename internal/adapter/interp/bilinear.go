// Package interp provides bilinear interpolation between ionospheric grid points.
package interp

import (
	"fmt"
	"math"

	"go.ngs.io/iono-api/internal/domain"
)

// tecuToMeters converts one TECU of vertical TEC to L1 group delay in meters.
const tecuToMeters = domain.TECUnit * domain.KIono / (domain.FreqL1 * domain.FreqL1)

// Weights returns the bilinear weights for normalized coordinates (x, y)
// in NE, NW, SW, SE order:
//
//	W = [x·y, (1-x)·y, (1-x)·(1-y), x·(1-y)]
//
// where x grows eastward and y grows northward within the cell.
func Weights(x, y float64) [4]float64 {
	return [4]float64{x * y, (1 - x) * y, (1 - x) * (1 - y), x * (1 - y)}
}

// InterpolateIGP interpolates the value at (lat, lon) from the four corner
// values of box, ordered NE, NW, SW, SE.
//
//	x = (lon - west) / (east - west)
//	y = (lat - south) / (north - south)
//	v = Σ W[k] · corners[k]
//
// A box collapsed on either axis returns domain.ErrDivisionByZero.
func InterpolateIGP(lat, lon float64, corners [4]float64, box domain.BoundingBox) (float64, error) {
	if box.East == box.West {
		return 0, fmt.Errorf("%w: east and west bounds are both %.4f", domain.ErrDivisionByZero, box.East)
	}
	if box.North == box.South {
		return 0, fmt.Errorf("%w: north and south bounds are both %.4f", domain.ErrDivisionByZero, box.North)
	}

	x := (lon - box.West) / (box.East - box.West)
	y := (lat - box.South) / (box.North - box.South)

	w := Weights(x, y)
	var sum float64
	for k := 0; k < 4; k++ {
		sum += w[k] * corners[k]
	}

	return sum, nil
}

// TECUToMeters converts vertical TEC in TECU to L1 delay in meters.
func TECUToMeters(tecu float64) float64 {
	return tecu * tecuToMeters
}

// ScaleTEC converts a raw IONEX integer to TECU using the file exponent.
func ScaleTEC(raw int, exponent int) float64 {
	return float64(raw) * math.Pow(10, float64(exponent))
}
