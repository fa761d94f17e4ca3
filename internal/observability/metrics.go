// Package observability carries the pipeline's logging and metrics setup.
// The jobs are short-lived batch runs, so metrics live on a private registry
// and are pushed to a Pushgateway at exit instead of being scraped.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the Prometheus counters and histograms for the pipeline.
type Metrics struct {
	RunsProcessed prometheus.Counter
	RunsSkipped   *prometheus.CounterVec // label: reason={coverage,complete}
	RunDuration   prometheus.Histogram

	RastersConverted prometheus.Counter
	RastersMissing   prometheus.Counter

	FiresAggregated *prometheus.CounterVec // label: population={catalog,active}
	FiresSkipped    *prometheus.CounterVec // label: population={catalog,active}

	DocumentsWritten prometheus.Counter
	DocumentsSwept   prometheus.Counter
	PublishFailures  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "debrisflow_etl",
			Name:      "runs_processed_total",
			Help:      "Forecast runs fully aggregated.",
		}),
		RunsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "debrisflow_etl",
			Name:      "runs_skipped_total",
			Help:      "Forecast runs skipped, by reason.",
		}, []string{"reason"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "debrisflow_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of one run's convert-and-aggregate cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		RastersConverted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "debrisflow_etl",
			Name:      "rasters_converted_total",
			Help:      "Per-lead-hour GeoTIFFs produced from raw NBM grids.",
		}),
		RastersMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "debrisflow_etl",
			Name:      "rasters_missing_total",
			Help:      "Lead hours whose raw NBM grid was absent from the archive.",
		}),
		FiresAggregated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "debrisflow_etl",
			Name:      "fires_aggregated_total",
			Help:      "Fires whose statistics made it into an output document.",
		}, []string{"population"}),
		FiresSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "debrisflow_etl",
			Name:      "fires_skipped_total",
			Help:      "Fires dropped from an output document.",
		}, []string{"population"}),
		DocumentsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "debrisflow_etl",
			Name:      "documents_written_total",
			Help:      "Aggregated JSON documents written.",
		}),
		DocumentsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "debrisflow_etl",
			Name:      "documents_swept_total",
			Help:      "Expired JSON documents deleted by the retention sweep.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "debrisflow_etl",
			Name:      "publish_failures_total",
			Help:      "rsync destinations that failed after retries.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RunsProcessed,
		m.RunsSkipped,
		m.RunDuration,
		m.RastersConverted,
		m.RastersMissing,
		m.FiresAggregated,
		m.FiresSkipped,
		m.DocumentsWritten,
		m.DocumentsSwept,
		m.PublishFailures,
	)

	return m
}

// Push sends the registry to a Pushgateway. A no-op when url is empty.
func (m *Metrics) Push(url, job string) error {
	if url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(m.registry).Push()
}

// NewMetricsForTesting is an alias kept for symmetry with service-style
// repos; every Metrics already has its own registry.
func NewMetricsForTesting() *Metrics { return NewMetrics() }
