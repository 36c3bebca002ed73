package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// range-map pipeline.
type Metrics struct {
	BandsComposited prometheus.Counter
	PolygonsBuilt   *prometheus.CounterVec // labels: kind={range,prediction_area}
	ZonalStats      *prometheus.CounterVec // labels: statistic
	ExportedFiles   *prometheus.CounterVec // labels: format={geojson,csv,netcdf,json}
	PipelineRunning prometheus.Gauge

	StageDuration *prometheus.HistogramVec // labels: stage
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.BandsComposited,
		m.PolygonsBuilt,
		m.ZonalStats,
		m.ExportedFiles,
		m.PipelineRunning,
		m.StageDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		BandsComposited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rangemap",
			Name:      "bands_composited_total",
			Help:      "Total weekly bands folded into season composites.",
		}),
		PolygonsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rangemap",
			Name:      "polygons_built_total",
			Help:      "Range and prediction-area layers built, by kind.",
		}, []string{"kind"}),
		ZonalStats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rangemap",
			Name:      "zonal_stats_total",
			Help:      "Zonal statistic values produced, by statistic.",
		}, []string{"statistic"}),
		ExportedFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rangemap",
			Name:      "exported_files_total",
			Help:      "Output files written, by format.",
		}, []string{"format"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rangemap",
			Name:      "pipeline_running",
			Help:      "1 while a species run is active, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rangemap",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
	}
}
