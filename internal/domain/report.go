package domain

import "time"

// Target describes the receiver position and the satellite geometry used
// for the broadcast model.
type Target struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	ElevationDeg float64 `json:"elevation_deg"`
	AzimuthDeg   float64 `json:"azimuth_deg"`
}

// DelayRecord holds both delay estimates for one epoch.
type DelayRecord struct {
	Epoch           Epoch
	TECU            float64 // Interpolated vertical TEC at the pierce point.
	GridDelayM      float64
	KlobucharDelayM float64
	HasKlobuchar    bool
}

// DelayReport is the result of one delay computation over a TEC map file.
type DelayReport struct {
	ID         string
	IonexFile  string
	NavFile    string
	Target     Target
	Box        BoundingBox
	Exponent   int
	Skipped    int // Epochs missing from at least one corner series.
	Records    []DelayRecord
	ComputedAt time.Time
}

// GridSeries returns the grid delays keyed by epoch.
func (r *DelayReport) GridSeries() DelaySeries {
	series := make(DelaySeries, len(r.Records))
	for _, rec := range r.Records {
		series[rec.Epoch] = rec.GridDelayM
	}
	return series
}

// KlobucharSeries returns the broadcast-model delays keyed by epoch.
func (r *DelayReport) KlobucharSeries() DelaySeries {
	series := make(DelaySeries)
	for _, rec := range r.Records {
		if rec.HasKlobuchar {
			series[rec.Epoch] = rec.KlobucharDelayM
		}
	}
	return series
}
