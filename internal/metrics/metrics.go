package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReadingsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weather_readings_stored_total",
			Help: "Readings appended to storage by the collector",
		},
	)
	ExportedRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "weather_export_rows",
			Help: "Data rows written by the last successful export",
		},
	)
	CycleDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_task_cycle_duration_ms",
			Help:    "Duration of one task cycle in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"task"},
	)
	CycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_task_errors_total",
			Help: "Failed task cycles, labelled by task and stage",
		},
		[]string{"task", "stage"},
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors with the default registry. Safe to
// call more than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ReadingsStored, ExportedRows, CycleDurationMs, CycleErrors)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveCycle(task string, dur time.Duration) {
	CycleDurationMs.WithLabelValues(task).Observe(float64(dur.Milliseconds()))
}

func RecordError(task, stage string) {
	CycleErrors.WithLabelValues(task, stage).Inc()
}
