package usecase

import (
	"context"
	"fmt"
	"time"

	"go.ngs.io/iono-api/internal/adapter/receiver"
	"go.ngs.io/iono-api/internal/domain"
	"go.ngs.io/iono-api/internal/metrics"
)

// KlobucharRequest asks for the broadcast-model delay at one instant.
type KlobucharRequest struct {
	NavFile      string
	Time         time.Time
	Lat          *float64
	Lon          *float64
	ElevationDeg float64
	AzimuthDeg   float64
}

// KlobucharResponse is the broadcast-model delay at one instant.
type KlobucharResponse struct {
	Time         string                         `json:"time"`
	GPSWeek      int                            `json:"gps_week"`
	TimeOfWeek   float64                        `json:"time_of_week"`
	Target       domain.Target                  `json:"target"`
	DelaySeconds float64                        `json:"delay_seconds"`
	DelayM       float64                        `json:"delay_m"`
	Coefficients domain.IonosphericCoefficients `json:"coefficients"`
}

// GPSTimeResponse is a calendar instant in GPS week and seconds of week.
type GPSTimeResponse struct {
	Time       string  `json:"time"`
	GPSWeek    int     `json:"gps_week"`
	TimeOfWeek float64 `json:"time_of_week"`
}

// SatelliteDelay is the broadcast-model delay along one line of sight.
type SatelliteDelay struct {
	PRN          int64   `json:"prn"`
	ElevationDeg float64 `json:"elevation_deg"`
	AzimuthDeg   float64 `json:"azimuth_deg"`
	DelayM       float64 `json:"delay_m"`
}

// Validate checks if the request is valid.
func (r *KlobucharRequest) Validate() error {
	if r.NavFile == "" {
		return fmt.Errorf("%w: navigation file must be provided", domain.ErrValidation)
	}
	if r.Time.IsZero() {
		return fmt.Errorf("%w: time must be provided", domain.ErrValidation)
	}
	if r.Lat == nil || r.Lon == nil {
		return fmt.Errorf("%w: lat and lon must be provided", domain.ErrValidation)
	}
	return validateTarget(domain.Target{Lat: *r.Lat, Lon: *r.Lon, ElevationDeg: r.ElevationDeg, AzimuthDeg: r.AzimuthDeg})
}

// Klobuchar computes the broadcast-model delay for a request.
func (uc *DelayUseCase) Klobuchar(ctx context.Context, req KlobucharRequest) (*KlobucharResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	start := time.Now()
	resp, err := uc.klobuchar(ctx, req)
	metrics.DelayComputeLatency.WithLabelValues("klobuchar").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DelayRequestsTotal.WithLabelValues("klobuchar", "error").Inc()
		return nil, err
	}
	metrics.DelayRequestsTotal.WithLabelValues("klobuchar", "ok").Inc()
	return resp, nil
}

func (uc *DelayUseCase) klobuchar(ctx context.Context, req KlobucharRequest) (*KlobucharResponse, error) {
	coeffs, err := uc.Coefficients(ctx, req.NavFile)
	if err != nil {
		return nil, err
	}

	gps, err := GPSTime(req.Time)
	if err != nil {
		return nil, err
	}

	target := domain.Target{Lat: *req.Lat, Lon: *req.Lon, ElevationDeg: req.ElevationDeg, AzimuthDeg: req.AzimuthDeg}
	seconds, err := domain.KlobucharDelay(target.Lat, target.Lon, target.ElevationDeg, target.AzimuthDeg, gps.TimeOfWeek, coeffs)
	if err != nil {
		return nil, err
	}

	return &KlobucharResponse{
		Time:         gps.Time,
		GPSWeek:      gps.GPSWeek,
		TimeOfWeek:   gps.TimeOfWeek,
		Target:       target,
		DelaySeconds: seconds,
		DelayM:       seconds * domain.SpeedOfLight,
		Coefficients: coeffs,
	}, nil
}

// GPSTime converts a UTC instant to GPS week and seconds of week.
// Leap seconds are not applied.
func GPSTime(t time.Time) (*GPSTimeResponse, error) {
	t = t.UTC()
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	week, tow, err := domain.GPSTimeOfWeek(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec)
	if err != nil {
		return nil, err
	}
	return &GPSTimeResponse{Time: t.Format(time.RFC3339Nano), GPSWeek: week, TimeOfWeek: tow}, nil
}

// SatelliteDelays computes the broadcast-model delay to every satellite of
// a receiver fix. Satellites below the horizon are left out.
func SatelliteDelays(fix receiver.Fix, coeffs domain.IonosphericCoefficients) ([]SatelliteDelay, error) {
	gps, err := GPSTime(fix.Time)
	if err != nil {
		return nil, err
	}

	out := make([]SatelliteDelay, 0, len(fix.Satellites))
	for _, sat := range fix.Satellites {
		if sat.ElevationDeg < 0 || sat.ElevationDeg > 90 {
			continue
		}
		d, err := domain.KlobucharDelayMeters(fix.Lat, fix.Lon, sat.ElevationDeg, sat.AzimuthDeg, gps.TimeOfWeek, coeffs)
		if err != nil {
			return nil, fmt.Errorf("satellite %d: %w", sat.PRN, err)
		}
		out = append(out, SatelliteDelay{PRN: sat.PRN, ElevationDeg: sat.ElevationDeg, AzimuthDeg: sat.AzimuthDeg, DelayM: d})
	}
	return out, nil
}

// FilesResponse lists the locally available input files.
type FilesResponse struct {
	Ionex      []string `json:"ionex"`
	Navigation []string `json:"navigation"`
}

// ListFiles returns the files in both source stores.
func (uc *DelayUseCase) ListFiles() (*FilesResponse, error) {
	ionexFiles, err := uc.ionexStore.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list TEC maps: %w", err)
	}
	navFiles, err := uc.navStore.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list navigation files: %w", err)
	}
	return &FilesResponse{Ionex: ionexFiles, Navigation: navFiles}, nil
}
