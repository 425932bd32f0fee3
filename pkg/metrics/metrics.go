package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Directory metrics
	EntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warden_entries_total",
			Help: "Total number of live entries in the directory",
		},
	)

	WriteOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_write_operations_total",
			Help: "Total write operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	WriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warden_write_duration_seconds",
			Help:    "Write transaction duration by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	PluginFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_plugin_failures_total",
			Help: "Plugin aborts by plugin name and phase",
		},
		[]string{"plugin", "phase"},
	)

	ReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_reloads_total",
			Help: "Post-commit cache reloads by flag",
		},
		[]string{"flag"},
	)

	ReloadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_reload_failures_total",
			Help: "Post-commit cache reload failures by flag",
		},
		[]string{"flag"},
	)

	ChangeLogAppendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_changelog_appends_total",
			Help: "Replication changelog records appended",
		},
	)
)

// Register registers all metrics with Prometheus
func Register() error {
	collectors := []prometheus.Collector{
		EntriesTotal,
		WriteOperationsTotal,
		WriteDuration,
		PluginFailuresTotal,
		ReloadsTotal,
		ReloadFailuresTotal,
		ChangeLogAppendsTotal,
	}

	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			// Ignore already registered errors
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveWrite records one write operation's outcome and duration.
func ObserveWrite(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	WriteOperationsTotal.WithLabelValues(kind, outcome).Inc()
	WriteDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
