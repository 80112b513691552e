package metrics

import "github.com/prometheus/client_golang/prometheus"

// PublishMetrics holds Prometheus metrics for the publish ingress.
type PublishMetrics struct {
	Events   *prometheus.CounterVec
	Channels prometheus.Histogram
}

// NewPublishMetrics creates and registers publish metrics on the given registry.
func NewPublishMetrics(reg prometheus.Registerer) *PublishMetrics {
	m := &PublishMetrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "events_total",
			Help:      "Total number of publish requests, by result.",
		}, []string{"result"}),
		Channels: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "channels_per_event",
			Help:      "Number of target channels per published event.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}

	reg.MustRegister(m.Events, m.Channels)
	return m
}
