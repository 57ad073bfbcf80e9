// Package netcdf writes delay reports as NetCDF time series.
package netcdf

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/iono-api/internal/domain"
)

// Variable names.
const (
	TimeVar      = "time"
	TECVar       = "tecu"
	GridVar      = "grid_delay"
	KlobucharVar = "klobuchar_delay"
)

// Sink writes one file per report into a directory.
type Sink struct {
	dir string
}

// NewSink creates a sink writing into dir.
func NewSink(dir string) *Sink {
	return &Sink{dir: dir}
}

// Name implements sink.Sink.
func (s *Sink) Name() string { return "netcdf" }

// Close implements sink.Sink.
func (s *Sink) Close() error { return nil }

// Write implements sink.Sink. The file is named after the TEC map and the
// report ID.
func (s *Sink) Write(_ context.Context, report *domain.DelayReport) error {
	//nolint:gosec // G301: Standard data directory permissions.
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dir, err)
	}
	return WriteReport(s.Path(report), report)
}

// Path returns the file the report is written to.
func (s *Sink) Path(report *domain.DelayReport) string {
	base := strings.ReplaceAll(report.IonexFile, ".", "_")
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.nc", base, report.ID))
}

// WriteReport writes report to path. Time is seconds since 1970-01-01 UTC.
// Epochs without a Klobuchar value hold NaN.
func WriteReport(path string, report *domain.DelayReport) error {
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()

	n := len(report.Records)
	dim, err := ds.AddDim(TimeVar, uint64(n))
	if err != nil {
		return fmt.Errorf("failed to add dimension: %w", err)
	}

	vars := make(map[string]netcdf.Var, 4)
	units := map[string]string{
		TimeVar:      "seconds since 1970-01-01 00:00:00 UTC",
		TECVar:       "TECU",
		GridVar:      "m",
		KlobucharVar: "m",
	}
	for _, name := range []string{TimeVar, TECVar, GridVar, KlobucharVar} {
		v, err := ds.AddVar(name, netcdf.DOUBLE, []netcdf.Dim{dim})
		if err != nil {
			return fmt.Errorf("failed to add variable %s: %w", name, err)
		}
		if err := v.Attr("units").WriteBytes([]byte(units[name])); err != nil {
			return fmt.Errorf("failed to write units of %s: %w", name, err)
		}
		vars[name] = v
	}

	global := map[string]string{
		"report_id":  report.ID,
		"ionex_file": report.IonexFile,
		"nav_file":   report.NavFile,
	}
	for k, v := range global {
		if err := ds.Attr(k).WriteBytes([]byte(v)); err != nil {
			return fmt.Errorf("failed to write attribute %s: %w", k, err)
		}
	}
	target := []float64{report.Target.Lat, report.Target.Lon, report.Target.ElevationDeg, report.Target.AzimuthDeg}
	if err := ds.Attr("target").WriteFloat64s(target); err != nil {
		return fmt.Errorf("failed to write target: %w", err)
	}
	box := []float64{report.Box.North, report.Box.South, report.Box.West, report.Box.East}
	if err := ds.Attr("bounding_box").WriteFloat64s(box); err != nil {
		return fmt.Errorf("failed to write bounding box: %w", err)
	}

	if err := ds.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	times := make([]float64, n)
	tecu := make([]float64, n)
	grid := make([]float64, n)
	klob := make([]float64, n)
	for i, rec := range report.Records {
		times[i] = float64(rec.Epoch.Time().Unix())
		tecu[i] = rec.TECU
		grid[i] = rec.GridDelayM
		klob[i] = math.NaN()
		if rec.HasKlobuchar {
			klob[i] = rec.KlobucharDelayM
		}
	}

	if n == 0 {
		return nil
	}
	for name, data := range map[string][]float64{TimeVar: times, TECVar: tecu, GridVar: grid, KlobucharVar: klob} {
		if err := vars[name].WriteFloat64s(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	return nil
}

// ReadVar reads one variable of a file written by WriteReport.
func ReadVar(path, name string) ([]float64, error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()

	v, err := ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s not found: %w", name, err)
	}
	dims, err := v.Dims()
	if err != nil {
		return nil, err
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("variable %s has %d dimensions, want 1", name, len(dims))
	}
	n, err := dims[0].Len()
	if err != nil {
		return nil, err
	}

	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	if err := v.ReadFloat64s(out); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return out, nil
}
