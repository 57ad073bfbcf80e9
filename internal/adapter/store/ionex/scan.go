// Package ionex reads TEC grid maps in the IONEX format.
//
// Only the records needed for delay computation are consumed: grid-row
// declarations, map epochs, the map data blocks and a few header fields.
// Every function makes one sequential pass over its reader.
package ionex

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.ngs.io/iono-api/internal/domain"
)

// Line markers.
const (
	markerGridRow    = "LAT/LON1/LON2/DLON/H"
	markerEpoch      = "EPOCH OF CURRENT MAP"
	markerRMSStart   = "START OF RMS MAP"
	markerTECStart   = "START OF TEC MAP"
	markerEndHeader  = "END OF HEADER"
	markerExponent   = "EXPONENT"
	markerLatRange   = "LAT1 / LAT2 / DLAT"
	markerLonRange   = "LON1 / LON2 / DLON"
	markerHgtRange   = "HGT1 / HGT2 / DHGT"
	markerMapCount   = "# OF MAPS IN FILE"
	markerBaseRadius = "BASE RADIUS"
)

var (
	signedDecimal = regexp.MustCompile(`-?\d+\.\d+`)
	signedInteger = regexp.MustCompile(`-?\d+`)
	unsignedInt   = regexp.MustCompile(`\d+`)
)

// maxLineBytes bounds a single line; IONEX records are 80 columns.
const maxLineBytes = 1024 * 1024

// gridRow is one LAT/LON1/LON2/DLON/H declaration.
type gridRow struct {
	Lat    float64
	Lon1   float64
	Lon2   float64
	DLon   float64
	Height float64
}

// columns returns the number of longitude columns declared by the row.
func (g gridRow) columns() (int, error) {
	if g.DLon == 0 {
		return 0, fmt.Errorf("%w: zero DLON in grid row at latitude %.2f", domain.ErrMalformedInput, g.Lat)
	}
	n := int(math.Round((g.Lon2-g.Lon1)/g.DLon)) + 1
	if n < 1 {
		return 0, fmt.Errorf("%w: grid row %.2f..%.2f step %.2f declares no columns", domain.ErrMalformedInput, g.Lon1, g.Lon2, g.DLon)
	}
	return n, nil
}

// longitude returns the declared longitude of column i.
func (g gridRow) longitude(i int) float64 {
	return g.Lon1 + float64(i)*g.DLon
}

// column returns the index of lon within the row.
func (g gridRow) column(lon float64) int {
	return int(math.Round(math.Abs(lon-g.Lon1) / math.Abs(g.DLon)))
}

func parseGridRow(line string) (gridRow, error) {
	matches := signedDecimal.FindAllString(line, -1)
	if len(matches) < 5 {
		return gridRow{}, fmt.Errorf("%w: grid row has %d numbers, want 5: %q", domain.ErrMalformedInput, len(matches), strings.TrimSpace(line))
	}

	var v [5]float64
	for i := 0; i < 5; i++ {
		f, err := strconv.ParseFloat(matches[i], 64)
		if err != nil {
			return gridRow{}, fmt.Errorf("%w: grid row value %q: %v", domain.ErrMalformedInput, matches[i], err)
		}
		v[i] = f
	}

	return gridRow{Lat: v[0], Lon1: v[1], Lon2: v[2], DLon: v[3], Height: v[4]}, nil
}

func parseEpoch(line string) (domain.Epoch, error) {
	matches := unsignedInt.FindAllString(line, 6)
	if len(matches) < 6 {
		return domain.Epoch{}, fmt.Errorf("%w: epoch line has %d fields, want 6: %q", domain.ErrMalformedInput, len(matches), strings.TrimSpace(line))
	}

	var v [6]int
	for i := range v {
		n, err := strconv.Atoi(matches[i])
		if err != nil {
			return domain.Epoch{}, fmt.Errorf("%w: epoch field %q: %v", domain.ErrMalformedInput, matches[i], err)
		}
		v[i] = n
	}

	return domain.Epoch{Year: v[0], Month: v[1], Day: v[2], Hour: v[3], Minute: v[4], Second: v[5]}, nil
}

// parseValues splits a data line into its integer TEC values.
func parseValues(line string) ([]int, error) {
	fields := strings.Fields(line)
	values := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: TEC value %q: %v", domain.ErrMalformedInput, f, err)
		}
		values = append(values, n)
	}
	return values, nil
}

func isMarkerLine(line string) bool {
	for _, m := range []string{markerGridRow, markerEpoch, markerRMSStart, markerTECStart, "END OF TEC MAP", "END OF RMS MAP", "END OF FILE"} {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return scanner
}
