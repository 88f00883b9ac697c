package batch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Bag outcomes, the values of the status label.
const (
	statusExtracted = "extracted"
	statusEmpty     = "empty"
	statusSkipped   = "skipped"
	statusFailed    = "failed"
)

// Metrics of a batch run, in their own registry so that they can be written to a
// node exporter textfile when the run ends.
type Metrics struct {
	registry *prometheus.Registry

	BagsTotal          *prometheus.CounterVec
	FramesTotal        prometheus.Counter
	ExtractionDuration prometheus.Histogram
	LastRun            prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bag2video_bags_total",
			Help: "Number of bag directories processed, by status",
		}, []string{"status"}),
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bag2video_frames_written_total",
			Help: "Number of frames written across all videos",
		}),
		ExtractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bag2video_extraction_duration_seconds",
			Help:    "Duration of a single bag extraction",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bag2video_last_run_timestamp_seconds",
			Help: "Unix time the last batch run finished",
		}),
	}
	m.registry.MustRegister(m.BagsTotal, m.FramesTotal, m.ExtractionDuration, m.LastRun)
	return m
}

// WriteTextfile writes the metrics in the text exposition format, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
