package ionex

import (
	"fmt"
	"io"
	"strings"

	"go.ngs.io/iono-api/internal/domain"
)

// Locate returns the grid cell that encloses (lat, lon).
//
// A row latitude at or above lat is a north candidate, below it a south
// candidate. A column longitude at or below lon is a west candidate, above
// it an east candidate. The closest candidate on each side wins, so a target
// sitting on a grid node resolves to a cell whose NW corner is that node.
// Longitudes come from the last grid row in the file.
//
// Returns domain.ErrValidation for a target outside [-90, 90] x [-180, 180],
// domain.ErrMalformedInput when the file has no grid rows and
// domain.ErrRange when the target lies outside the grid on any side.
func Locate(r io.Reader, lat, lon float64) (domain.BoundingBox, error) {
	if !(lat >= -90 && lat <= 90) || !(lon >= -180 && lon <= 180) {
		return domain.BoundingBox{}, fmt.Errorf("%w: target (%v, %v) outside [-90, 90] x [-180, 180]", domain.ErrValidation, lat, lon)
	}

	var (
		box                  domain.BoundingBox
		haveNorth, haveSouth bool
		last                 gridRow
		rows                 int
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, markerGridRow) {
			continue
		}

		row, err := parseGridRow(line)
		if err != nil {
			return box, err
		}
		rows++
		last = row

		if row.Lat >= lat {
			if !haveNorth || row.Lat < box.North {
				box.North = row.Lat
				haveNorth = true
			}
		} else {
			if !haveSouth || row.Lat > box.South {
				box.South = row.Lat
				haveSouth = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return box, fmt.Errorf("locate: %w", err)
	}

	if rows == 0 {
		return box, fmt.Errorf("%w: no %s records", domain.ErrMalformedInput, markerGridRow)
	}

	n, err := last.columns()
	if err != nil {
		return box, err
	}

	var haveWest, haveEast bool
	for i := 0; i < n; i++ {
		l := last.longitude(i)
		if l <= lon {
			if !haveWest || l > box.West {
				box.West = l
				haveWest = true
			}
		} else {
			if !haveEast || l < box.East {
				box.East = l
				haveEast = true
			}
		}
	}

	switch {
	case !haveNorth:
		return box, fmt.Errorf("%w: latitude %.4f is north of the grid", domain.ErrRange, lat)
	case !haveSouth:
		return box, fmt.Errorf("%w: latitude %.4f is south of the grid", domain.ErrRange, lat)
	case !haveWest:
		return box, fmt.Errorf("%w: longitude %.4f is west of the grid", domain.ErrRange, lon)
	case !haveEast:
		return box, fmt.Errorf("%w: longitude %.4f is east of the grid", domain.ErrRange, lon)
	}

	return box, nil
}
