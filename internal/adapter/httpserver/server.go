package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/radudiaconu0/sockudo/internal/adapter/metrics"
	"github.com/radudiaconu0/sockudo/internal/domain"
	"github.com/radudiaconu0/sockudo/internal/platform/config"
)

// Publisher accepts server-side publish requests.
type Publisher interface {
	Publish(ctx context.Context, appID string, req domain.PublishRequest) error
	PublishBatch(ctx context.Context, appID string, batch []domain.PublishRequest) error
}

// NamespaceLookup exposes read-only namespace queries per app.
type NamespaceLookup interface {
	Namespace(appID string) (domain.NamespaceView, error)
}

// WebSocketHandler serves the client protocol for one upgraded request.
type WebSocketHandler interface {
	Serve(w http.ResponseWriter, r *http.Request, appKey string)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	publisher  Publisher
	namespaces NamespaceLookup
	websocket  WebSocketHandler

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time

	channelQueries singleflight.Group
}

// NewServer wires the routes. reg may be nil, in which case /metrics is not
// served and HTTP requests are not instrumented.
func NewServer(cfg *config.Config, publisher Publisher, namespaces NamespaceLookup, websocketHandler WebSocketHandler, reg *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		publisher:    publisher,
		namespaces:   namespaces,
		websocket:    websocketHandler,
		registry:     reg,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}
	if reg != nil {
		srv.httpMetrics = metrics.NewHTTPMetrics(reg)
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "addr", s.config.Addr())
	if err := s.echo.Start(s.config.Addr()); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
