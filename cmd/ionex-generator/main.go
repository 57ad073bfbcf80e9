// Command ionex-generator writes synthetic IONEX TEC map files for local
// development and tests.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
)

// Grid defines the geographic bounds and resolution.
type Grid struct {
	LatMax float64
	LatMin float64
	DLat   float64 // Positive; rows run north to south.
	LonMin float64
	LonMax float64
	DLon   float64
	Height float64 // km.
}

// Options controls the generated file.
type Options struct {
	Grid     Grid
	Start    time.Time
	Interval time.Duration
	Maps     int
	Exponent int
	BaseTEC  float64 // TECU at night.
	PeakTEC  float64 // Additional TECU at 14:00 local time on the equator.
	RMS      bool
}

func main() {
	// Command line flags
	outDir := flag.String("out", "./data/ionex", "Output directory")
	date := flag.String("date", "2018-01-01", "UTC date of the first map (YYYY-MM-DD)")
	region := flag.String("region", "global", "Region: global, japan, or custom")
	latMin := flag.Float64("lat-min", 20.0, "Minimum latitude (custom region)")
	latMax := flag.Float64("lat-max", 50.0, "Maximum latitude (custom region)")
	lonMin := flag.Float64("lon-min", 120.0, "Minimum longitude (custom region)")
	lonMax := flag.Float64("lon-max", 150.0, "Maximum longitude (custom region)")
	dlat := flag.Float64("dlat", 2.5, "Latitude spacing in degrees")
	dlon := flag.Float64("dlon", 5.0, "Longitude spacing in degrees")
	interval := flag.Duration("interval", 2*time.Hour, "Map interval")
	maps := flag.Int("maps", 13, "Number of TEC maps")
	exponent := flag.Int("exponent", -1, "IONEX exponent")
	rms := flag.Bool("rms", true, "Append RMS maps")
	compress := flag.Bool("gzip", false, "Write a .gz archive")

	flag.Parse()

	// Define grid based on region
	var grid Grid
	switch *region {
	case "global":
		grid = Grid{LatMax: 87.5, LatMin: -87.5, DLat: *dlat, LonMin: -180, LonMax: 180, DLon: *dlon}
	case "japan":
		grid = Grid{LatMax: 50, LatMin: 20, DLat: *dlat, LonMin: 120, LonMax: 150, DLon: *dlon}
	case "custom":
		grid = Grid{LatMax: *latMax, LatMin: *latMin, DLat: *dlat, LonMin: *lonMin, LonMax: *lonMax, DLon: *dlon}
	default:
		log.Fatalf("Unknown region: %s (use global, japan, or custom)", *region)
	}
	grid.Height = 450

	start, err := time.Parse(time.DateOnly, *date)
	if err != nil {
		log.Fatalf("Invalid date: %v", err)
	}

	opts := Options{
		Grid:     grid,
		Start:    start,
		Interval: *interval,
		Maps:     *maps,
		Exponent: *exponent,
		BaseTEC:  5,
		PeakTEC:  40,
		RMS:      *rms,
	}
	if err := opts.Validate(); err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	// Create output directory
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	name := FileName(start)
	if *compress {
		name += ".gz"
	}
	path := filepath.Join(*outDir, name)
	if err := writeFile(path, opts, *compress); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}

	log.WithFields(log.Fields{
		"file": path,
		"maps": opts.Maps,
		"rows": grid.rows(),
		"cols": grid.columns(),
	}).Info("Generated IONEX file")
}

// FileName returns the short IONEX archive name for a day.
func FileName(day time.Time) string {
	return fmt.Sprintf("synt%03d0.%02di", day.YearDay(), day.Year()%100)
}

// Validate checks the options for a writable grid.
func (o Options) Validate() error {
	g := o.Grid
	switch {
	case g.DLat <= 0 || g.DLon <= 0:
		return fmt.Errorf("grid spacing must be positive")
	case g.LatMax <= g.LatMin || g.LonMax <= g.LonMin:
		return fmt.Errorf("empty grid")
	case o.Maps < 1:
		return fmt.Errorf("at least one map is required")
	case o.Interval <= 0:
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

func writeFile(path string, opts Options, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if compress {
		zw := gzip.NewWriter(f)
		defer zw.Close()
		w = zw
	}
	return Write(w, opts)
}

func (g Grid) rows() int    { return int(math.Round((g.LatMax-g.LatMin)/g.DLat)) + 1 }
func (g Grid) columns() int { return int(math.Round((g.LonMax-g.LonMin)/g.DLon)) + 1 }

// VTEC returns the model vertical TEC in TECU: a night floor plus a
// daytime bump peaking at 14:00 local solar time, fading toward the poles.
func (o Options) VTEC(t time.Time, lat, lon float64) float64 {
	hours := float64(t.Hour()) + float64(t.Minute())/60 + lon/15
	day := math.Cos(2 * math.Pi * (hours - 14) / 24)
	if day < 0 {
		day = 0
	}
	return o.BaseTEC + o.PeakTEC*day*math.Cos(lat*math.Pi/180)
}

// Write writes a complete IONEX file.
func Write(w io.Writer, o Options) error {
	ew := &errWriter{w: w}
	g := o.Grid
	last := o.Start.Add(time.Duration(o.Maps-1) * o.Interval)
	scale := math.Pow(10, float64(-o.Exponent))

	ew.record(fmt.Sprintf("%8.1f%12s%-20s%-20s", 1.0, "", "IONOSPHERE MAPS", "GPS"), "IONEX VERSION / TYPE")
	ew.record(fmt.Sprintf("%-20s%-20s%-20s", "ionex-generator", "iono-api", time.Now().UTC().Format("02-Jan-06 15:04")), "PGM / RUN BY / DATE")
	ew.record("Synthetic TEC maps for testing", "DESCRIPTION")
	ew.record(epochFields(o.Start), "EPOCH OF FIRST MAP")
	ew.record(epochFields(last), "EPOCH OF LAST MAP")
	ew.record(fmt.Sprintf("%6d", int(o.Interval.Seconds())), "INTERVAL")
	ew.record(fmt.Sprintf("%6d", o.Maps), "# OF MAPS IN FILE")
	ew.record("  NONE", "MAPPING FUNCTION")
	ew.record(fmt.Sprintf("%8.1f", 0.0), "ELEVATION CUTOFF")
	ew.record(fmt.Sprintf("%8.1f", 6371.0), "BASE RADIUS")
	ew.record(fmt.Sprintf("%6d", 2), "MAP DIMENSION")
	ew.record(fmt.Sprintf("  %6.1f%6.1f%6.1f", g.Height, g.Height, 0.0), "HGT1 / HGT2 / DHGT")
	ew.record(fmt.Sprintf("  %6.1f%6.1f%6.1f", g.LatMax, g.LatMin, -g.DLat), "LAT1 / LAT2 / DLAT")
	ew.record(fmt.Sprintf("  %6.1f%6.1f%6.1f", g.LonMin, g.LonMax, g.DLon), "LON1 / LON2 / DLON")
	ew.record(fmt.Sprintf("%6d", o.Exponent), "EXPONENT")
	ew.record("", "END OF HEADER")

	for i := 0; i < o.Maps; i++ {
		t := o.Start.Add(time.Duration(i) * o.Interval)
		o.writeMap(ew, i+1, t, "TEC", func(lat, lon float64) int {
			return int(math.Round(o.VTEC(t, lat, lon) * scale))
		})
	}
	if o.RMS {
		for i := 0; i < o.Maps; i++ {
			t := o.Start.Add(time.Duration(i) * o.Interval)
			o.writeMap(ew, i+1, t, "RMS", func(lat, lon float64) int {
				return int(math.Round(2 * scale))
			})
		}
	}

	ew.record("", "END OF FILE")
	return ew.err
}

func (o Options) writeMap(ew *errWriter, n int, t time.Time, kind string, value func(lat, lon float64) int) {
	g := o.Grid
	ew.record(fmt.Sprintf("%6d", n), "START OF "+kind+" MAP")
	ew.record(epochFields(t), "EPOCH OF CURRENT MAP")
	cols := g.columns()
	for r := 0; r < g.rows(); r++ {
		lat := g.LatMax - float64(r)*g.DLat
		ew.record(fmt.Sprintf("  %6.1f%6.1f%6.1f%6.1f%6.1f", lat, g.LonMin, g.LonMax, g.DLon, g.Height), "LAT/LON1/LON2/DLON/H")

		var line strings.Builder
		for c := 0; c < cols; c++ {
			fmt.Fprintf(&line, "%5d", value(lat, g.LonMin+float64(c)*g.DLon))
			if c%16 == 15 || c == cols-1 {
				ew.line(line.String())
				line.Reset()
			}
		}
	}
	ew.record(fmt.Sprintf("%6d", n), "END OF "+kind+" MAP")
}

func epochFields(t time.Time) string {
	return fmt.Sprintf("%6d%6d%6d%6d%6d%6d", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// errWriter remembers the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) record(content, label string) {
	e.line(fmt.Sprintf("%-60s%s", content, label))
}

func (e *errWriter) line(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s+"\n")
}
