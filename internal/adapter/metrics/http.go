package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	apperrors "github.com/radudiaconu0/sockudo/internal/platform/errors"
)

const (
	websocketRoute = "/app/:key"
	unmatchedRoute = "unmatched"
)

var httpLabels = []string{"method", "route", "status_code"}

// HTTPMetrics tracks the REST surface. WebSocket upgrades, probes and the
// scrape endpoint are left out.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of REST API requests.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, httpLabels),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "REST API requests by route and status code.",
		}, httpLabels),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "REST API requests currently being served.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge)
	return m
}

func skipRoute(route string) bool {
	return route == "/metrics" || route == websocketRoute || strings.HasPrefix(route, "/health/")
}

// Middleware records one observation per request. Requests that matched no
// route share a single label value so scanners cannot blow up cardinality.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if skipRoute(route) {
				return next(c)
			}
			if route == "" {
				route = unmatchedRoute
			}

			m.InFlightGauge.Inc()
			start := time.Now()
			err := next(c)
			m.InFlightGauge.Dec()

			labels := []string{c.Request().Method, route, strconv.Itoa(responseStatus(c, err))}
			m.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(labels...).Inc()
			return err
		}
	}
}

// responseStatus reports the status the client will see. An error that has
// not been written yet is rendered later by the error handler, so its status
// is derived from the error.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	if he, ok := errors.AsType[*echo.HTTPError](err); ok {
		return he.Code
	}
	if ae, ok := errors.AsType[*apperrors.Error](err); ok {
		return ae.HTTPStatus()
	}
	return http.StatusInternalServerError
}
