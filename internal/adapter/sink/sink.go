// Package sink exports delay reports to external systems.
package sink

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/iono-api/internal/domain"
	"go.ngs.io/iono-api/internal/metrics"
)

// Sink receives every computed report.
type Sink interface {
	Name() string
	Write(ctx context.Context, report *domain.DelayReport) error
	Close() error
}

// Multi fans a report out to several sinks.
type Multi []Sink

// Name implements Sink.
func (m Multi) Name() string { return "multi" }

// Write sends the report to every sink and joins their errors. A failing
// sink does not stop the others.
func (m Multi) Write(ctx context.Context, report *domain.DelayReport) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, report); err != nil {
			metrics.SinkWritesTotal.WithLabelValues(s.Name(), "error").Inc()
			log.WithError(err).WithField("sink", s.Name()).Warn("sink write failed")
			errs = append(errs, err)
			continue
		}
		metrics.SinkWritesTotal.WithLabelValues(s.Name(), "ok").Inc()
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
