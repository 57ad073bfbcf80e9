// Package nav reads Klobuchar ionospheric coefficients from GPS navigation
// message files.
//
// RINEX 2 headers carry them on ION ALPHA / ION BETA records, RINEX 3 on
// IONOSPHERIC CORR records tagged GPSA / GPSB. Values use Fortran exponent
// notation (D instead of E).
package nav

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.ngs.io/iono-api/internal/domain"
)

const (
	labelAlpha    = "ION ALPHA"
	labelBeta     = "ION BETA"
	labelIonoCorr = "IONOSPHERIC CORR"
	labelEnd      = "END OF HEADER"

	// Header labels start at column 61.
	labelColumn = 60
)

var floatPattern = regexp.MustCompile(`[-+]?\d*\.\d+(?:[eE][-+]?\d+)?`)

// ReadCoefficients returns the first alpha and beta coefficient sets found
// in r. Scanning stops at the end of the header.
//
// Returns domain.ErrMalformedInput when either set is missing or has fewer
// than four values.
func ReadCoefficients(r io.Reader) (domain.IonosphericCoefficients, error) {
	var (
		coeffs              domain.IonosphericCoefficients
		haveAlpha, haveBeta bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		var (
			dst  *[4]float64
			seen *bool
			name string
		)
		switch {
		case strings.Contains(line, labelEnd):
			return finish(coeffs, haveAlpha, haveBeta)
		case strings.Contains(line, labelAlpha):
			dst, seen, name = &coeffs.Alpha, &haveAlpha, labelAlpha
		case strings.Contains(line, labelBeta):
			dst, seen, name = &coeffs.Beta, &haveBeta, labelBeta
		case strings.Contains(line, labelIonoCorr) && strings.HasPrefix(line, "GPSA"):
			dst, seen, name = &coeffs.Alpha, &haveAlpha, "GPSA"
			line = line[4:]
		case strings.Contains(line, labelIonoCorr) && strings.HasPrefix(line, "GPSB"):
			dst, seen, name = &coeffs.Beta, &haveBeta, "GPSB"
			line = line[4:]
		default:
			continue
		}
		if *seen {
			continue
		}

		values, err := parseValues(dataField(line))
		if err != nil {
			return coeffs, fmt.Errorf("%s: %w", name, err)
		}
		*dst = values
		*seen = true
	}
	if err := scanner.Err(); err != nil {
		return coeffs, fmt.Errorf("read navigation header: %w", err)
	}

	return finish(coeffs, haveAlpha, haveBeta)
}

func finish(coeffs domain.IonosphericCoefficients, haveAlpha, haveBeta bool) (domain.IonosphericCoefficients, error) {
	switch {
	case !haveAlpha:
		return coeffs, fmt.Errorf("%w: no alpha coefficients", domain.ErrMalformedInput)
	case !haveBeta:
		return coeffs, fmt.Errorf("%w: no beta coefficients", domain.ErrMalformedInput)
	}
	return coeffs, nil
}

// dataField strips the header label from a record.
func dataField(line string) string {
	for _, label := range []string{labelAlpha, labelBeta, labelIonoCorr} {
		if i := strings.Index(line, label); i >= 0 {
			return line[:i]
		}
	}
	if len(line) > labelColumn {
		return line[:labelColumn]
	}
	return line
}

func parseValues(field string) ([4]float64, error) {
	var out [4]float64

	normalized := strings.NewReplacer("D", "E", "d", "e").Replace(field)
	matches := floatPattern.FindAllString(normalized, -1)
	if len(matches) < 4 {
		return out, fmt.Errorf("%w: found %d values, want 4 in %q", domain.ErrMalformedInput, len(matches), strings.TrimSpace(field))
	}

	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(matches[i], 64)
		if err != nil {
			return out, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
		}
		out[i] = v
	}
	return out, nil
}
