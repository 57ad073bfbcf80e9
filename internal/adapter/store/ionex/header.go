package ionex

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.ngs.io/iono-api/internal/domain"
)

// Header holds the IONEX header fields used for delay computation.
type Header struct {
	Exponent   int        // Raw values are in 10^Exponent TECU.
	Lats       [3]float64 // LAT1, LAT2, DLAT.
	Lons       [3]float64 // LON1, LON2, DLON.
	Hgts       [3]float64 // HGT1, HGT2, DHGT.
	MapCount   int
	BaseRadius float64 // km.
}

// ReadHeader parses the header section. Files without a header, or without
// an EXPONENT record, yield Exponent 0.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header

	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.Contains(line, markerEndHeader), strings.Contains(line, markerTECStart):
			return h, nil
		case strings.Contains(line, markerExponent):
			v, err := firstInt(line)
			if err != nil {
				return h, err
			}
			h.Exponent = v
		case strings.Contains(line, markerMapCount):
			v, err := firstInt(line)
			if err != nil {
				return h, err
			}
			h.MapCount = v
		case strings.Contains(line, markerLatRange):
			if err := parseTriple(line, &h.Lats); err != nil {
				return h, err
			}
		case strings.Contains(line, markerLonRange):
			if err := parseTriple(line, &h.Lons); err != nil {
				return h, err
			}
		case strings.Contains(line, markerHgtRange):
			if err := parseTriple(line, &h.Hgts); err != nil {
				return h, err
			}
		case strings.Contains(line, markerBaseRadius):
			matches := signedDecimal.FindAllString(line, 1)
			if len(matches) == 1 {
				h.BaseRadius, _ = strconv.ParseFloat(matches[0], 64)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}

	return h, nil
}

func firstInt(line string) (int, error) {
	m := signedInteger.FindString(line)
	if m == "" {
		return 0, fmt.Errorf("%w: no integer in %q", domain.ErrMalformedInput, strings.TrimSpace(line))
	}
	return strconv.Atoi(m)
}

func parseTriple(line string, dst *[3]float64) error {
	matches := signedDecimal.FindAllString(line, 3)
	if len(matches) < 3 {
		return fmt.Errorf("%w: expected 3 numbers in %q", domain.ErrMalformedInput, strings.TrimSpace(line))
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(matches[i], 64)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
		}
		dst[i] = v
	}
	return nil
}
