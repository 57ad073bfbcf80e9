// Package metrics declares the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DelayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ionoapi_delay_requests_total",
			Help: "Total delay computations by outcome",
		},
		[]string{"method", "status"},
	)

	DelayComputeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ionoapi_delay_compute_seconds",
			Help:    "Delay computation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	EpochsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ionoapi_epochs_skipped_total",
			Help: "Epochs dropped because a corner series had no value",
		},
	)

	ReportCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ionoapi_report_cache_total",
			Help: "Report cache lookups by result",
		},
		[]string{"result"},
	)

	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ionoapi_fetch_total",
			Help: "Remote file retrievals by outcome",
		},
		[]string{"status"},
	)

	FetchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ionoapi_fetch_latency_seconds",
			Help:    "Remote file retrieval latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	SinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ionoapi_sink_writes_total",
			Help: "Report exports by sink and outcome",
		},
		[]string{"sink", "status"},
	)

	ReceiverSentences = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ionoapi_receiver_sentences_total",
			Help: "NMEA sentences read from the receiver by type",
		},
		[]string{"type"},
	)
)
