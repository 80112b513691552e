package metrics

import "github.com/prometheus/client_golang/prometheus"

// AppSourceMetrics holds Prometheus metrics for loading app records.
type AppSourceMetrics struct {
	Loads        *prometheus.CounterVec
	LoadDuration *prometheus.HistogramVec
	AppsLoaded   prometheus.Gauge
}

// NewAppSourceMetrics creates and registers app source metrics on the given registry.
func NewAppSourceMetrics(reg prometheus.Registerer) *AppSourceMetrics {
	m := &AppSourceMetrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "app_source",
			Name:      "loads_total",
			Help:      "Total number of app source load attempts, by source and result.",
		}, []string{"source", "result"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "app_source",
			Name:      "load_duration_seconds",
			Help:      "Duration of app source loads in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		AppsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "app_source",
			Name:      "apps_loaded",
			Help:      "Number of enabled apps loaded at startup.",
		}),
	}

	reg.MustRegister(m.Loads, m.LoadDuration, m.AppsLoaded)
	return m
}
