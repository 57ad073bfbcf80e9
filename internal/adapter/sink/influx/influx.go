// Package influx writes delay series to InfluxDB 2.
package influx

import (
	"context"
	"fmt"
	"strconv"

	influxdb "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"go.ngs.io/iono-api/internal/domain"
)

// Measurement is the InfluxDB measurement name.
const Measurement = "iono_delay"

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Sink writes one point per epoch.
type Sink struct {
	client influxdb.Client
	writer pointWriter
}

// NewSink connects to the server at url.
func NewSink(url, token, org, bucket string) *Sink {
	client := influxdb.NewClientWithOptions(url, token, influxdb.DefaultOptions().SetBatchSize(1000))
	return &Sink{client: client, writer: client.WriteAPIBlocking(org, bucket)}
}

// Name implements sink.Sink.
func (s *Sink) Name() string { return "influx" }

// Write implements sink.Sink.
func (s *Sink) Write(ctx context.Context, report *domain.DelayReport) error {
	points := Points(report)
	if len(points) == 0 {
		return nil
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Points converts a report to InfluxDB points tagged with the source files
// and target.
func Points(report *domain.DelayReport) []*write.Point {
	points := make([]*write.Point, 0, len(report.Records))
	for _, rec := range report.Records {
		p := influxdb.NewPointWithMeasurement(Measurement).
			AddTag("ionex", report.IonexFile).
			AddTag("lat", strconv.FormatFloat(report.Target.Lat, 'f', -1, 64)).
			AddTag("lon", strconv.FormatFloat(report.Target.Lon, 'f', -1, 64)).
			AddField("tecu", rec.TECU).
			AddField("grid_delay_m", rec.GridDelayM).
			SetTime(rec.Epoch.Time())
		if report.NavFile != "" {
			p.AddTag("nav", report.NavFile)
		}
		if rec.HasKlobuchar {
			p.AddField("klobuchar_delay_m", rec.KlobucharDelayM)
		}
		points = append(points, p)
	}
	return points
}
