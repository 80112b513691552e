package metrics

import "github.com/prometheus/client_golang/prometheus"

// NamespaceMetrics holds Prometheus metrics for per-app namespaces.
type NamespaceMetrics struct {
	Sockets         *prometheus.GaugeVec
	Commands        *prometheus.CounterVec
	MailboxDepth    *prometheus.GaugeVec
	Deliveries      *prometheus.CounterVec
	PanicsRecovered *prometheus.CounterVec
}

// NewNamespaceMetrics creates and registers namespace metrics on the given registry.
func NewNamespaceMetrics(reg prometheus.Registerer) *NamespaceMetrics {
	m := &NamespaceMetrics{
		Sockets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "namespace",
			Name:      "sockets",
			Help:      "Number of registered sockets, by app.",
		}, []string{"app_id"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "namespace",
			Name:      "commands_total",
			Help:      "Total number of namespace commands processed, by app and command.",
		}, []string{"app_id", "command"}),
		MailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "namespace",
			Name:      "mailbox_depth",
			Help:      "Number of commands waiting in the namespace mailbox, by app.",
		}, []string{"app_id"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "namespace",
			Name:      "deliveries_total",
			Help:      "Total number of broadcast payloads handed to sockets, by app.",
		}, []string{"app_id"}),
		PanicsRecovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "namespace",
			Name:      "panics_recovered_total",
			Help:      "Total number of recovered panics while handling commands or deliveries, by app.",
		}, []string{"app_id"}),
	}

	reg.MustRegister(m.Sockets, m.Commands, m.MailboxDepth, m.Deliveries, m.PanicsRecovered)
	return m
}
