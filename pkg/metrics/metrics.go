package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Log pipeline metrics
	LogWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skiff_log_write_failures_total",
			Help: "Total number of log segment writes that failed",
		},
	)

	LogEntriesFlushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skiff_log_entries_flushed_total",
			Help: "Total number of log entries flushed to storage",
		},
	)

	// Volume download metrics
	VolumeDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skiff_volume_downloads_total",
			Help: "Total number of volume downloads by outcome",
		},
		[]string{"outcome"},
	)

	// Connection metrics
	ConnectedNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skiff_connected_nodes",
			Help: "Number of nodes currently connected to the control plane",
		},
	)

	VolumesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skiff_volumes_total",
			Help: "Total number of registered volumes",
		},
	)
)

var registerOnce sync.Once

// Register registers all Skiff metrics with the default Prometheus
// registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			LogWriteFailures,
			LogEntriesFlushed,
			VolumeDownloads,
			ConnectedNodes,
			VolumesTotal,
		)
	})
}

// Handler returns the HTTP handler serving the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
