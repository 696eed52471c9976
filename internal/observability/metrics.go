package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nhs_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the loader and service.
type Metrics struct {
	// Source fetch metrics.
	SourceFetches       *prometheus.CounterVec // labels: outcome={success,unavailable,malformed,cancelled}
	SourceFetchDuration prometheus.Histogram
	SourceRecords       prometheus.Counter

	// Table metrics, describing the most recently published table.
	TableRows     prometheus.Gauge
	TableFallback prometheus.Gauge

	Refreshes *prometheus.CounterVec // labels: result={remote,fallback,error,skipped}
	SinkRows  prometheus.Counter

	HTTPRequests *prometheus.CounterVec // labels: method, route, status
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SourceFetches,
		m.SourceFetchDuration,
		m.SourceRecords,
		m.TableRows,
		m.TableFallback,
		m.Refreshes,
		m.SinkRows,
		m.HTTPRequests,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Dashboard API fetches by outcome.",
		}, []string{"outcome"}),
		SourceFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of the dashboard API download.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SourceRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_records_total",
			Help:      "Total CSV records parsed from the dashboard API.",
		}),
		TableRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Number of rows in the latest published table.",
		}),
		TableFallback: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_fallback",
			Help:      "1 when the latest table was built from the fallback dataset, 0 otherwise.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Table refreshes by result.",
		}, []string{"result"}),
		SinkRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_rows_total",
			Help:      "Total table rows written to the sink.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
	}
}
