package usecase

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go.ngs.io/iono-api/internal/adapter/interp"
	"go.ngs.io/iono-api/internal/adapter/sink"
	"go.ngs.io/iono-api/internal/adapter/store"
	"go.ngs.io/iono-api/internal/adapter/store/ionex"
	"go.ngs.io/iono-api/internal/adapter/store/nav"
	"go.ngs.io/iono-api/internal/domain"
	"go.ngs.io/iono-api/internal/metrics"
)

// DelayRequest encapsulates a delay series request.
type DelayRequest struct {
	IonexFile string
	NavFile   string // Optional; enables the Klobuchar series.

	Lat *float64
	Lon *float64

	ElevationDeg float64
	AzimuthDeg   float64

	// Refresh bypasses the report cache.
	Refresh bool
}

// DelayResponse contains both delay series for one TEC map file.
type DelayResponse struct {
	ID          string             `json:"id"`
	IonexFile   string             `json:"ionex_file"`
	NavFile     string             `json:"nav_file,omitempty"`
	Target      domain.Target      `json:"target"`
	BoundingBox domain.BoundingBox `json:"bounding_box"`
	Corners     [4]domain.GridNode `json:"corners"`
	Exponent    int                `json:"exponent"`
	Skipped     int                `json:"skipped_epochs"`
	Points      []DelayPoint       `json:"points"`
	Meta        map[string]string  `json:"meta"`
}

// DelayPoint is one epoch of a DelayResponse.
type DelayPoint struct {
	Time            string   `json:"time"`
	GPSWeek         int      `json:"gps_week"`
	TimeOfWeek      float64  `json:"time_of_week"`
	TECU            float64  `json:"tecu"`
	GridDelayM      float64  `json:"grid_delay_m"`
	KlobucharDelayM *float64 `json:"klobuchar_delay_m,omitempty"`
}

// DelayUseCase orchestrates delay computation.
type DelayUseCase struct {
	ionexStore store.SourceStore
	navStore   store.SourceStore
	reports    store.ReportStore // Optional.
	sink       sink.Sink         // Optional.
	now        func() time.Time
}

// NewDelayUseCase creates a new delay use case. reports and out may be nil.
func NewDelayUseCase(ionexStore, navStore store.SourceStore, reports store.ReportStore, out sink.Sink) *DelayUseCase {
	return &DelayUseCase{
		ionexStore: ionexStore,
		navStore:   navStore,
		reports:    reports,
		sink:       out,
		now:        time.Now,
	}
}

// Validate checks if the request is valid.
func (r *DelayRequest) Validate() error {
	if r.IonexFile == "" {
		return fmt.Errorf("%w: ionex file must be provided", domain.ErrValidation)
	}
	if r.Lat == nil || r.Lon == nil {
		return fmt.Errorf("%w: lat and lon must be provided", domain.ErrValidation)
	}
	return validateTarget(r.Target())
}

// Target returns the request position and geometry.
func (r *DelayRequest) Target() domain.Target {
	t := domain.Target{ElevationDeg: r.ElevationDeg, AzimuthDeg: r.AzimuthDeg}
	if r.Lat != nil {
		t.Lat = *r.Lat
	}
	if r.Lon != nil {
		t.Lon = *r.Lon
	}
	return t
}

func validateTarget(t domain.Target) error {
	switch {
	case math.IsNaN(t.Lat) || t.Lat < -90 || t.Lat > 90:
		return fmt.Errorf("%w: latitude must be between -90 and 90", domain.ErrValidation)
	case math.IsNaN(t.Lon) || t.Lon < -180 || t.Lon > 180:
		return fmt.Errorf("%w: longitude must be between -180 and 180", domain.ErrValidation)
	case math.IsNaN(t.ElevationDeg) || t.ElevationDeg < 0 || t.ElevationDeg > 90:
		return fmt.Errorf("%w: elevation must be between 0 and 90", domain.ErrValidation)
	case math.IsNaN(t.AzimuthDeg) || t.AzimuthDeg < -360 || t.AzimuthDeg > 360:
		return fmt.Errorf("%w: azimuth must be between -360 and 360", domain.ErrValidation)
	}
	return nil
}

// Execute computes, or loads from cache, the delay series for a request.
func (uc *DelayUseCase) Execute(ctx context.Context, req DelayRequest) (*DelayResponse, error) {
	report, err := uc.Report(ctx, req)
	if err != nil {
		return nil, err
	}
	return newDelayResponse(report), nil
}

// Report returns the delay report for a request. Cached reports are reused
// unless req.Refresh is set; fresh reports are stored and sent to the sink.
func (uc *DelayUseCase) Report(ctx context.Context, req DelayRequest) (*domain.DelayReport, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	target := req.Target()

	if req.Refresh {
		evict(uc.ionexStore, req.IonexFile)
		evict(uc.navStore, req.NavFile)
	}

	if uc.reports != nil && !req.Refresh {
		cached, err := uc.reports.Find(ctx, store.ReportKey{IonexFile: req.IonexFile, NavFile: req.NavFile, Target: target})
		if err != nil {
			log.WithError(err).Warn("report cache lookup failed")
		}
		if cached != nil {
			metrics.ReportCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.ReportCacheTotal.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	report, err := uc.compute(ctx, req.IonexFile, req.NavFile, target)
	metrics.DelayComputeLatency.WithLabelValues("grid").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DelayRequestsTotal.WithLabelValues("grid", "error").Inc()
		return nil, err
	}
	metrics.DelayRequestsTotal.WithLabelValues("grid", "ok").Inc()
	metrics.EpochsSkipped.Add(float64(report.Skipped))

	if uc.reports != nil {
		if err := uc.reports.Save(ctx, report); err != nil {
			log.WithError(err).WithField("report", report.ID).Warn("failed to cache report")
		}
	}
	if uc.sink != nil {
		if err := uc.sink.Write(ctx, report); err != nil {
			log.WithError(err).WithField("report", report.ID).Warn("failed to export report")
		}
	}

	return report, nil
}

// GridSeries returns the interpolated grid delay in meters for every epoch
// of the TEC map file at which all four surrounding nodes have a value.
func (uc *DelayUseCase) GridSeries(ctx context.Context, ionexFile string, target domain.Target) (domain.DelaySeries, error) {
	report, err := uc.compute(ctx, ionexFile, "", target)
	if err != nil {
		return nil, err
	}
	return report.GridSeries(), nil
}

// KlobucharSeries returns the broadcast-model delay in meters at each epoch.
func (uc *DelayUseCase) KlobucharSeries(ctx context.Context, navFile string, target domain.Target, epochs []domain.Epoch) (domain.DelaySeries, error) {
	coeffs, err := uc.Coefficients(ctx, navFile)
	if err != nil {
		return nil, err
	}

	series := make(domain.DelaySeries, len(epochs))
	for _, e := range epochs {
		d, err := klobucharAt(e, target, coeffs)
		if err != nil {
			return nil, err
		}
		series[e] = d
	}
	return series, nil
}

// Coefficients reads the Klobuchar coefficients of a navigation file.
func (uc *DelayUseCase) Coefficients(ctx context.Context, navFile string) (domain.IonosphericCoefficients, error) {
	if navFile == "" {
		return domain.IonosphericCoefficients{}, fmt.Errorf("%w: navigation file must be provided", domain.ErrValidation)
	}
	rc, err := uc.navStore.Open(ctx, navFile)
	if err != nil {
		return domain.IonosphericCoefficients{}, fmt.Errorf("failed to open %s: %w", navFile, err)
	}
	defer rc.Close()

	coeffs, err := nav.ReadCoefficients(rc)
	if err != nil {
		return coeffs, fmt.Errorf("failed to read coefficients from %s: %w", navFile, err)
	}
	return coeffs, nil
}

func (uc *DelayUseCase) compute(ctx context.Context, ionexFile, navFile string, target domain.Target) (*domain.DelayReport, error) {
	if err := validateTarget(target); err != nil {
		return nil, err
	}

	var header ionex.Header
	err := uc.withIonex(ctx, ionexFile, func(r io.Reader) (err error) {
		header, err = ionex.ReadHeader(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", ionexFile, err)
	}

	var box domain.BoundingBox
	err = uc.withIonex(ctx, ionexFile, func(r io.Reader) (err error) {
		box, err = ionex.Locate(r, target.Lat, target.Lon)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to locate (%.4f, %.4f) in %s: %w", target.Lat, target.Lon, ionexFile, err)
	}

	// One extraction pass per corner, in NE, NW, SW, SE order.
	var corners [4]domain.TECSeries
	for k, node := range box.Corners() {
		err := uc.withIonex(ctx, ionexFile, func(r io.Reader) (err error) {
			corners[k], err = ionex.Extract(r, node)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to extract node %s from %s: %w", node, ionexFile, err)
		}
	}

	report := &domain.DelayReport{
		ID:         uuid.NewString(),
		IonexFile:  ionexFile,
		NavFile:    navFile,
		Target:     target,
		Box:        box,
		Exponent:   header.Exponent,
		ComputedAt: uc.now().UTC(),
	}

	all := make(map[domain.Epoch]struct{})
	for _, s := range corners {
		for e := range s {
			all[e] = struct{}{}
		}
	}
	epochs := make([]domain.Epoch, 0, len(all))
	for e := range all {
		epochs = append(epochs, e)
	}
	domain.SortEpochs(epochs)

	for _, e := range epochs {
		var values [4]float64
		complete := true
		for k, s := range corners {
			raw, ok := s[e]
			if !ok {
				complete = false
				break
			}
			values[k] = interp.ScaleTEC(raw, header.Exponent)
		}
		if !complete {
			report.Skipped++
			continue
		}

		tecu, err := interp.InterpolateIGP(target.Lat, target.Lon, values, box)
		if err != nil {
			return nil, fmt.Errorf("failed to interpolate at %s: %w", e, err)
		}
		report.Records = append(report.Records, domain.DelayRecord{
			Epoch:      e,
			TECU:       tecu,
			GridDelayM: interp.TECUToMeters(tecu),
		})
	}

	if navFile != "" {
		coeffs, err := uc.Coefficients(ctx, navFile)
		if err != nil {
			return nil, err
		}
		for i := range report.Records {
			rec := &report.Records[i]
			d, err := klobucharAt(rec.Epoch, target, coeffs)
			if err != nil {
				return nil, err
			}
			rec.KlobucharDelayM = d
			rec.HasKlobuchar = true
		}
	}

	log.WithFields(log.Fields{
		"ionex":   ionexFile,
		"nav":     navFile,
		"box":     box,
		"epochs":  len(report.Records),
		"skipped": report.Skipped,
	}).Debug("delay series computed")

	return report, nil
}

// evict drops a cached file so that a refresh rereads it from disk.
func evict(s store.SourceStore, name string) {
	if e, ok := s.(store.Evicter); ok && name != "" {
		e.Evict(name)
	}
}

func (uc *DelayUseCase) withIonex(ctx context.Context, name string, fn func(io.Reader) error) error {
	rc, err := uc.ionexStore.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()
	return fn(rc)
}

func klobucharAt(e domain.Epoch, target domain.Target, coeffs domain.IonosphericCoefficients) (float64, error) {
	_, tow, err := e.GPSTimeOfWeek()
	if err != nil {
		return 0, fmt.Errorf("failed to convert %s to GPS time: %w", e, err)
	}
	d, err := domain.KlobucharDelayMeters(target.Lat, target.Lon, target.ElevationDeg, target.AzimuthDeg, tow, coeffs)
	if err != nil {
		return 0, fmt.Errorf("klobuchar at %s: %w", e, err)
	}
	return d, nil
}

func newDelayResponse(report *domain.DelayReport) *DelayResponse {
	resp := &DelayResponse{
		ID:          report.ID,
		IonexFile:   report.IonexFile,
		NavFile:     report.NavFile,
		Target:      report.Target,
		BoundingBox: report.Box,
		Corners:     report.Box.Corners(),
		Exponent:    report.Exponent,
		Skipped:     report.Skipped,
		Points:      make([]DelayPoint, 0, len(report.Records)),
		Meta: map[string]string{
			"computed_at": report.ComputedAt.UTC().Format(time.RFC3339),
			"model":       "bilinear_igp",
		},
	}
	if report.NavFile != "" {
		resp.Meta["broadcast_model"] = "klobuchar"
	}

	for _, rec := range report.Records {
		p := DelayPoint{
			Time:       rec.Epoch.String(),
			TECU:       rec.TECU,
			GridDelayM: rec.GridDelayM,
		}
		if week, tow, err := rec.Epoch.GPSTimeOfWeek(); err == nil {
			p.GPSWeek = week
			p.TimeOfWeek = tow
		}
		if rec.HasKlobuchar {
			v := rec.KlobucharDelayM
			p.KlobucharDelayM = &v
		}
		resp.Points = append(resp.Points, p)
	}
	return resp
}
