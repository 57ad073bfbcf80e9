package ionex

import (
	"fmt"
	"io"
	"strings"

	"go.ngs.io/iono-api/internal/domain"
)

// Extract returns the TEC time series for one grid node.
//
// Only TEC maps are read; scanning stops at the first RMS map. For every
// epoch only the first row declared at the node latitude counts; rows for
// the same latitude at other heights are ignored. Values equal to
// domain.NoTECValue are skipped, leaving a gap.
// Values are raw file integers; apply the header exponent to get TECU.
//
// Returns domain.ErrDataNotFound when no grid row carries the node latitude
// or the node longitude lies past the end of its row.
func Extract(r io.Reader, node domain.GridNode) (domain.TECSeries, error) {
	series := make(domain.TECSeries)
	consumed := make(map[domain.Epoch]bool)

	var (
		epoch     domain.Epoch
		haveEpoch bool
		matched   bool

		// Data block being collected for a matching row.
		collecting bool
		want       int
		col        int
		values     []int
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if collecting {
			if isMarkerLine(line) {
				return nil, fmt.Errorf("%w: data block at latitude %.2f ended after %d of %d values", domain.ErrMalformedInput, node.Lat, len(values), want)
			}
			v, err := parseValues(line)
			if err != nil {
				return nil, err
			}
			values = append(values, v...)
			if len(values) < want {
				continue
			}

			collecting = false
			consumed[epoch] = true
			if values[col] != domain.NoTECValue {
				series[epoch] = values[col]
			}
			continue
		}

		switch {
		case strings.Contains(line, markerRMSStart):
			return finish(series, matched, node)

		case strings.Contains(line, markerEpoch):
			e, err := parseEpoch(line)
			if err != nil {
				return nil, err
			}
			epoch = e
			haveEpoch = true

		case strings.Contains(line, markerGridRow):
			if !haveEpoch {
				continue
			}
			row, err := parseGridRow(line)
			if err != nil {
				return nil, err
			}
			if row.Lat != node.Lat || consumed[epoch] {
				continue
			}

			n, err := row.columns()
			if err != nil {
				return nil, err
			}
			c := row.column(node.Lon)
			if c >= n {
				return nil, fmt.Errorf("%w: longitude %.2f outside row %.2f..%.2f", domain.ErrDataNotFound, node.Lon, row.Lon1, row.Lon2)
			}

			matched = true
			collecting = true
			want = n
			col = c
			values = values[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	if collecting {
		return nil, fmt.Errorf("%w: file ended inside data block at latitude %.2f", domain.ErrMalformedInput, node.Lat)
	}

	return finish(series, matched, node)
}

func finish(series domain.TECSeries, matched bool, node domain.GridNode) (domain.TECSeries, error) {
	if !matched {
		return nil, fmt.Errorf("%w: no grid row at latitude %.2f for node %s", domain.ErrDataNotFound, node.Lat, node)
	}
	return series, nil
}
